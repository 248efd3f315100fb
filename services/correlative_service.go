package services

import (
	"fmt"

	"pagovecinal/models"

	"gorm.io/gorm"
)

// Correlative number prefixes. Each prefix is an independent, year-scoped
// sequence starting at 1.
const (
	PrefixReceipt       = "REC"  // Regular fee payments
	PrefixAgreementPaid = "CONV" // Agreement installment payments
	PrefixMiscellaneous = "OTR"  // Miscellaneous payments and expenses
	PrefixAgreement     = "AGR"  // Agreement numbers
)

// CorrelativeService allocates gapless per-prefix, per-year sequence numbers
// using an atomic upsert on the counter table. Call Next inside the same
// transaction that inserts the numbered record so a rollback releases the
// number together with the insert.
type CorrelativeService struct {
	db *gorm.DB
}

// NewCorrelativeService creates a new CorrelativeService
func NewCorrelativeService(db *gorm.DB) *CorrelativeService {
	return &CorrelativeService{db: db}
}

// Next allocates the next number for (prefix, year) and formats it as
// PREFIX-YYYY-NNNNN. The sequence field widens automatically past 99999.
func (s *CorrelativeService) Next(tx *gorm.DB, prefix string, year int) (string, error) {
	if tx == nil {
		tx = s.db
	}

	// Single-statement upsert keeps concurrent allocations from reading
	// the same value
	var value int64
	err := tx.Raw(
		`INSERT INTO correlative_counters (prefix, year, value) VALUES (?, ?, 1)
		 ON CONFLICT (prefix, year) DO UPDATE SET value = correlative_counters.value + 1
		 RETURNING value`,
		prefix, year,
	).Scan(&value).Error
	if err != nil {
		return "", Internal("failed to allocate correlative number", err)
	}

	return FormatCorrelative(prefix, year, value), nil
}

// Current returns the last allocated number for (prefix, year), 0 if none
func (s *CorrelativeService) Current(prefix string, year int) (int64, error) {
	var counter models.CorrelativeCounter
	err := s.db.Where("prefix = ? AND year = ?", prefix, year).First(&counter).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, Internal("failed to read correlative counter", err)
	}
	return counter.Value, nil
}

// FormatCorrelative renders a correlative number in its persisted form
func FormatCorrelative(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, value)
}
