package models

import (
	"time"
)

// PaymentStatus represents the status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusApproved  PaymentStatus = "APPROVED"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment is a single settlement attempt against exactly one fee.
// Only an APPROVED payment advances the fee's status.
type Payment struct {
	ID                   uint          `gorm:"primaryKey;autoIncrement"`
	FeeID                uint          `gorm:"column:fee_id;not null;index"`
	Fee                  Fee           `gorm:"foreignKey:FeeID"`
	UserID               uint          `gorm:"column:user_id;not null"` // Who made the payment
	User                 User          `gorm:"foreignKey:UserID"`
	Amount               float64       `gorm:"column:amount;not null"`
	PaymentDate          time.Time     `gorm:"column:payment_date;not null"`
	ReceiptFile          string        `gorm:"column:receipt_file;size:255"`           // Path to uploaded receipt image
	GeneratedReceiptFile string        `gorm:"column:generated_receipt_file;size:255"` // Path to auto-generated receipt document
	Status               PaymentStatus `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	Notes                string        `gorm:"column:notes;size:255"`
	CreatedAt            time.Time     `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time     `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string {
	return "payments"
}
