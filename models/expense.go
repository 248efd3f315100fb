package models

import (
	"time"
)

// ExpenseType classifies admin-recorded expenditures to third parties
type ExpenseType string

const (
	ExpenseTypeMaintenance    ExpenseType = "MAINTENANCE"
	ExpenseTypeCleaning       ExpenseType = "CLEANING"
	ExpenseTypeRepairs        ExpenseType = "REPAIRS"
	ExpenseTypeServices       ExpenseType = "SERVICES"
	ExpenseTypeUtilities      ExpenseType = "UTILITIES"
	ExpenseTypeSupplies       ExpenseType = "SUPPLIES"
	ExpenseTypeInsurance      ExpenseType = "INSURANCE"
	ExpenseTypeLegal          ExpenseType = "LEGAL"
	ExpenseTypeAdministrative ExpenseType = "ADMINISTRATIVE"
	ExpenseTypeOther          ExpenseType = "OTHER"
)

// Expense is an admin-recorded payment to a third party. It has no property
// link; receipts issued for expenses carry null property/owner snapshots.
type Expense struct {
	ID                   uint          `gorm:"primaryKey;autoIncrement"`
	UserID               uint          `gorm:"column:user_id;not null"` // Admin who recorded the expense
	User                 User          `gorm:"foreignKey:UserID"`
	ExpenseType          ExpenseType   `gorm:"column:expense_type;type:varchar(20);not null"`
	Amount               float64       `gorm:"column:amount;not null"`
	ExpenseDate          time.Time     `gorm:"column:expense_date;not null"`
	ReceiptFile          string        `gorm:"column:receipt_file;size:255"`
	GeneratedReceiptFile string        `gorm:"column:generated_receipt_file;size:255"`
	Status               PaymentStatus `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	Description          string        `gorm:"column:description;not null;size:255"`
	Beneficiary          string        `gorm:"column:beneficiary;not null;size:100"` // Third party receiving the payment
	BeneficiaryDetails   string        `gorm:"column:beneficiary_details;size:255"`
	Notes                string        `gorm:"column:notes;size:255"`
	CreatedAt            time.Time     `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time     `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Expense) TableName() string {
	return "expenses"
}
