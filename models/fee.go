package models

import (
	"time"
)

// FeeSchedule is a recurring-charge template that drives fee generation
type FeeSchedule struct {
	ID            uint       `gorm:"primaryKey;autoIncrement"`
	Amount        float64    `gorm:"column:amount;not null"`
	Description   string     `gorm:"column:description;not null;size:255"`
	EffectiveDate time.Time  `gorm:"column:effective_date;not null"`
	EndDate       *time.Time `gorm:"column:end_date"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	DueDay        int        `gorm:"column:due_day;not null;default:1"` // Day of month when fees are due (1-31)
	CreatedAt     time.Time  `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (FeeSchedule) TableName() string {
	return "fee_schedules"
}

// FeeStatus represents the lifecycle state of a fee
type FeeStatus string

const (
	FeeStatusPending       FeeStatus = "PENDING"
	FeeStatusCompleted     FeeStatus = "COMPLETED"
	FeeStatusAgreement     FeeStatus = "AGREEMENT"
	FeeStatusPartiallyPaid FeeStatus = "PARTIALLY_PAID"
	FeeStatusCancelled     FeeStatus = "CANCELLED"
)

// Fee is one billing instance for one property in one (year, month) period.
// Amount is copied from the schedule at generation time and never changes;
// PaidAmount accumulates approved payments and never exceeds Amount.
// At most one fee exists per (property, schedule, year, month).
type Fee struct {
	ID            uint        `gorm:"primaryKey;autoIncrement"`
	PropertyID    uint        `gorm:"column:property_id;not null;index;uniqueIndex:idx_fee_period"`
	Property      Property    `gorm:"foreignKey:PropertyID"`
	FeeScheduleID uint        `gorm:"column:fee_schedule_id;not null;uniqueIndex:idx_fee_period"`
	FeeSchedule   FeeSchedule `gorm:"foreignKey:FeeScheduleID"`
	UserID        *uint       `gorm:"column:user_id"` // Owner the fee is billed to, when registered
	User          *User       `gorm:"foreignKey:UserID"`
	AgreementID   *uint       `gorm:"column:agreement_id;index"` // Set while the fee is locked into an agreement
	Amount        float64     `gorm:"column:amount;not null"`
	PaidAmount    float64     `gorm:"column:paid_amount;not null;default:0"`
	GeneratedDate time.Time   `gorm:"column:generated_date;not null"`
	Year          int         `gorm:"column:year;not null;uniqueIndex:idx_fee_period"`
	Month         int         `gorm:"column:month;not null;uniqueIndex:idx_fee_period"`
	DueDate       time.Time   `gorm:"column:due_date;not null"`
	Status        FeeStatus   `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	Reference     string      `gorm:"column:reference;size:50"`
	Notes         string      `gorm:"column:notes;size:255"`
	CreatedAt     time.Time   `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Fee) TableName() string {
	return "fees"
}

// RemainingAmount returns the unpaid part of the fee
func (f *Fee) RemainingAmount() float64 {
	return f.Amount - f.PaidAmount
}

// Locked reports whether the fee is frozen inside a payment agreement
func (f *Fee) Locked() bool {
	return f.Status == FeeStatusAgreement
}
