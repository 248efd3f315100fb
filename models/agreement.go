package models

import (
	"time"
)

// AgreementStatus represents the status of a payment agreement
type AgreementStatus string

const (
	AgreementStatusActive    AgreementStatus = "ACTIVE"
	AgreementStatusCompleted AgreementStatus = "COMPLETED"
	AgreementStatusCancelled AgreementStatus = "CANCELLED"
	AgreementStatusDefaulted AgreementStatus = "DEFAULTED"
)

// AgreementInstallmentStatus represents the status of a single installment
type AgreementInstallmentStatus string

const (
	InstallmentStatusPending   AgreementInstallmentStatus = "PENDING"
	InstallmentStatusPaid      AgreementInstallmentStatus = "PAID"
	InstallmentStatusOverdue   AgreementInstallmentStatus = "OVERDUE"
	InstallmentStatusCancelled AgreementInstallmentStatus = "CANCELLED"
)

// Agreement is an installment plan covering a set of fees for one property.
// TotalDebt is the sum of the covered fees' amounts at creation time.
type Agreement struct {
	ID                uint                   `gorm:"primaryKey;autoIncrement"`
	PropertyID        uint                   `gorm:"column:property_id;not null;index"`
	Property          Property               `gorm:"foreignKey:PropertyID"`
	UserID            uint                   `gorm:"column:user_id;not null"` // Who created the agreement
	User              User                   `gorm:"foreignKey:UserID"`
	Fees              []Fee                  `gorm:"foreignKey:AgreementID"`
	TotalDebt         float64                `gorm:"column:total_debt;not null"`
	MonthlyAmount     float64                `gorm:"column:monthly_amount;not null"`
	InstallmentsCount int                    `gorm:"column:installments_count;not null"`
	StartDate         time.Time              `gorm:"column:start_date;not null"`
	EndDate           time.Time              `gorm:"column:end_date;not null"`
	Status            AgreementStatus        `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'"`
	AgreementNumber   string                 `gorm:"column:agreement_number;unique;not null;size:20"` // Format: AGR-YYYY-NNNNN
	PDFFile           string                 `gorm:"column:pdf_file;size:255"`                        // Path to generated document
	Notes             string                 `gorm:"column:notes;size:255"`
	Installments      []AgreementInstallment `gorm:"foreignKey:AgreementID"`
	CreatedAt         time.Time              `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Agreement) TableName() string {
	return "agreements"
}

// AgreementInstallment is one scheduled payment within an agreement
type AgreementInstallment struct {
	ID                uint                       `gorm:"primaryKey;autoIncrement"`
	AgreementID       uint                       `gorm:"column:agreement_id;not null;index;uniqueIndex:idx_installment_number"`
	Agreement         Agreement                  `gorm:"foreignKey:AgreementID"`
	InstallmentNumber int                        `gorm:"column:installment_number;not null;uniqueIndex:idx_installment_number"`
	Amount            float64                    `gorm:"column:amount;not null"`
	DueDate           time.Time                  `gorm:"column:due_date;not null"`
	PaidDate          *time.Time                 `gorm:"column:paid_date"`
	Status            AgreementInstallmentStatus `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	PaymentReference  string                     `gorm:"column:payment_reference;size:100"`
	Notes             string                     `gorm:"column:notes;size:255"`
	CreatedAt         time.Time                  `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time                  `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (AgreementInstallment) TableName() string {
	return "agreement_installments"
}
