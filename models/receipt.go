package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PropertySnapshot freezes property identity at receipt issuance time
type PropertySnapshot struct {
	Villa      string `json:"villa"`
	RowLetter  string `json:"row_letter"`
	Number     int    `json:"number"`
	OwnerName  string `json:"owner_name"`
	OwnerPhone string `json:"owner_phone"`
}

// OwnerSnapshot freezes owner contact details at receipt issuance time
type OwnerSnapshot struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Value implements driver.Valuer so snapshots persist as JSON text
func (s PropertySnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *PropertySnapshot) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func (s OwnerSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *OwnerSnapshot) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value interface{}, dst interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported snapshot column type %T", value)
	}
}

// ReceiptSourceKind discriminates what event a receipt documents
type ReceiptSourceKind string

const (
	ReceiptSourcePayment       ReceiptSourceKind = "PAYMENT"
	ReceiptSourceMiscellaneous ReceiptSourceKind = "MISCELLANEOUS"
	ReceiptSourceExpense       ReceiptSourceKind = "EXPENSE"
)

// ReceiptSource is a tagged union linking a receipt to exactly one source
// record. Construct it through one of the constructors below; a zero value
// is invalid.
type ReceiptSource struct {
	Kind                   ReceiptSourceKind
	PaymentID              *uint
	MiscellaneousPaymentID *uint
	ExpenseID              *uint
}

// PaymentSource builds a source pointing at a regular fee payment
func PaymentSource(paymentID uint) ReceiptSource {
	return ReceiptSource{Kind: ReceiptSourcePayment, PaymentID: &paymentID}
}

// MiscellaneousSource builds a source pointing at a miscellaneous payment
func MiscellaneousSource(miscID uint) ReceiptSource {
	return ReceiptSource{Kind: ReceiptSourceMiscellaneous, MiscellaneousPaymentID: &miscID}
}

// ExpenseSource builds a source pointing at an administrative expense
func ExpenseSource(expenseID uint) ReceiptSource {
	return ReceiptSource{Kind: ReceiptSourceExpense, ExpenseID: &expenseID}
}

// Validate checks that exactly one source link matches the declared kind
func (s ReceiptSource) Validate() error {
	set := 0
	if s.PaymentID != nil {
		set++
	}
	if s.MiscellaneousPaymentID != nil {
		set++
	}
	if s.ExpenseID != nil {
		set++
	}
	if set != 1 {
		return errors.New("receipt source must reference exactly one record")
	}
	switch s.Kind {
	case ReceiptSourcePayment:
		if s.PaymentID == nil {
			return errors.New("payment source without payment id")
		}
	case ReceiptSourceMiscellaneous:
		if s.MiscellaneousPaymentID == nil {
			return errors.New("miscellaneous source without payment id")
		}
	case ReceiptSourceExpense:
		if s.ExpenseID == nil {
			return errors.New("expense source without expense id")
		}
	default:
		return fmt.Errorf("unknown receipt source kind %q", s.Kind)
	}
	return nil
}

// Receipt is an immutable proof-of-payment record. Once inserted it is never
// mutated; the only allowed removal is an explicit admin delete.
type Receipt struct {
	ID                     uint                  `gorm:"primaryKey;autoIncrement"`
	CorrelativeNumber      string                `gorm:"column:correlative_number;unique;not null;size:20"` // Format: PREFIX-YYYY-NNNNN
	SourceKind             ReceiptSourceKind     `gorm:"column:source_kind;type:varchar(20);not null"`
	PaymentID              *uint                 `gorm:"column:payment_id;index"`
	Payment                *Payment              `gorm:"foreignKey:PaymentID"`
	MiscellaneousPaymentID *uint                 `gorm:"column:miscellaneous_payment_id;index"`
	MiscellaneousPayment   *MiscellaneousPayment `gorm:"foreignKey:MiscellaneousPaymentID"`
	ExpenseID              *uint                 `gorm:"column:expense_id;index"`
	Expense                *Expense              `gorm:"foreignKey:ExpenseID"`
	IssueDate              time.Time             `gorm:"column:issue_date;not null"`
	TotalAmount            float64               `gorm:"column:total_amount;not null"`
	PropertyDetails        *PropertySnapshot     `gorm:"column:property_details;type:text"` // Null only for expense receipts
	OwnerDetails           *OwnerSnapshot        `gorm:"column:owner_details;type:text"`
	FeePeriod              string                `gorm:"column:fee_period;size:255"`
	Signature              string                `gorm:"column:signature;size:64"` // HMAC over number, amount and issue date
	Notes                  string                `gorm:"column:notes;size:255"`
	CreatedAt              time.Time             `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

func (Receipt) TableName() string {
	return "receipts"
}

// CorrelativeCounter backs the gapless per-prefix, per-year sequence used for
// receipt and agreement numbers. Incremented atomically with an upsert.
type CorrelativeCounter struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Prefix string `gorm:"column:prefix;not null;size:10;uniqueIndex:idx_counter_prefix_year"`
	Year   int    `gorm:"column:year;not null;uniqueIndex:idx_counter_prefix_year"`
	Value  int64  `gorm:"column:value;not null;default:0"`
}

func (CorrelativeCounter) TableName() string {
	return "correlative_counters"
}
