package models

import (
	"time"
)

// MiscellaneousPaymentType classifies ad-hoc owner payments
type MiscellaneousPaymentType string

const (
	MiscTypeMaintenance MiscellaneousPaymentType = "MAINTENANCE"
	MiscTypeRepairs     MiscellaneousPaymentType = "REPAIRS"
	MiscTypeServices    MiscellaneousPaymentType = "SERVICES"
	MiscTypePenalties   MiscellaneousPaymentType = "PENALTIES"
	MiscTypeOther       MiscellaneousPaymentType = "OTHER"
)

// MiscellaneousPayment is an ad-hoc owner payment not tied to a fee. Property
// and owner details are snapshotted at creation so receipt issuance does not
// depend on the property still existing unchanged.
type MiscellaneousPayment struct {
	ID                   uint                     `gorm:"primaryKey;autoIncrement"`
	PropertyID           *uint                    `gorm:"column:property_id;index"`
	Property             *Property                `gorm:"foreignKey:PropertyID"`
	UserID               uint                     `gorm:"column:user_id;not null"` // Who created the payment
	User                 User                     `gorm:"foreignKey:UserID"`
	PaymentType          MiscellaneousPaymentType `gorm:"column:payment_type;type:varchar(20);not null"`
	Amount               float64                  `gorm:"column:amount;not null"`
	PaymentDate          time.Time                `gorm:"column:payment_date;not null"`
	ReceiptFile          string                   `gorm:"column:receipt_file;size:255"`
	GeneratedReceiptFile string                   `gorm:"column:generated_receipt_file;size:255"`
	Status               PaymentStatus            `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	Description          string                   `gorm:"column:description;not null;size:255"`
	Notes                string                   `gorm:"column:notes;size:255"`
	PropertyDetails      *PropertySnapshot        `gorm:"column:property_details;type:text"`
	OwnerDetails         *OwnerSnapshot           `gorm:"column:owner_details;type:text"`
	CreatedAt            time.Time                `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (MiscellaneousPayment) TableName() string {
	return "miscellaneous_payments"
}
