package services

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// CreatePaymentDTO carries data for a new settlement attempt against a fee
type CreatePaymentDTO struct {
	FeeID       uint      `json:"fee_id" validate:"required"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	PaymentDate time.Time `json:"payment_date"`
	ReceiptFile string    `json:"receipt_file"`
	Notes       string    `json:"notes" validate:"max=255"`
	UserID      uint      `json:"-" validate:"required"`
}

// ApproveResult reports an approval outcome. The payment and fee updates are
// committed before receipt issuance and email dispatch run; ReceiptErr and
// EmailErr record side-effect failures without undoing the approval.
type ApproveResult struct {
	Payment    *models.Payment
	Receipt    *models.Receipt
	ReceiptErr error
	EmailErr   error
}

// BulkOperationError records a failure for one item of a batch
type BulkOperationError struct {
	ID    uint   `json:"id,omitempty"`
	Row   int    `json:"row,omitempty"`
	Error string `json:"error"`
}

// BulkApproveResult reports per-item outcomes of a bulk approval
type BulkApproveResult struct {
	Approved []uint               `json:"approved"`
	Errors   []BulkOperationError `json:"errors"`
}

// BulkImportResult reports per-row outcomes of a spreadsheet import
type BulkImportResult struct {
	Created int                  `json:"created"`
	Errors  []BulkOperationError `json:"errors"`
}

// PaymentService manages settlement attempts and their approval lifecycle
type PaymentService struct {
	db        *gorm.DB
	validator *validator.Validate
	fees      *FeeService
	receipts  *ReceiptService
	email     *EmailService
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(db *gorm.DB, fees *FeeService, receipts *ReceiptService, email *EmailService) *PaymentService {
	return &PaymentService{
		db:        db,
		validator: validator.New(),
		fees:      fees,
		receipts:  receipts,
		email:     email,
	}
}

// Create inserts a pending payment against a fee. The fee's status does not
// change until the payment is approved.
func (s *PaymentService) Create(dto CreatePaymentDTO) (*models.Payment, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	fee, err := s.fees.GetByID(dto.FeeID)
	if err != nil {
		return nil, err
	}
	if fee.Locked() {
		return nil, Invariant("fee %d is part of an agreement; pay through the agreement installments", fee.ID)
	}
	if fee.Status == models.FeeStatusCompleted {
		return nil, Validation("fee %d is already fully paid", fee.ID)
	}

	paymentDate := dto.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	payment := &models.Payment{
		FeeID:       dto.FeeID,
		UserID:      dto.UserID,
		Amount:      dto.Amount,
		PaymentDate: paymentDate,
		ReceiptFile: dto.ReceiptFile,
		Status:      models.PaymentStatusPending,
		Notes:       dto.Notes,
	}

	if err := s.db.Create(payment).Error; err != nil {
		return nil, Internal("failed to create payment", err)
	}

	utils.LogInfo("Payment %d created against fee %d for %.2f", payment.ID, payment.FeeID, payment.Amount)
	return payment, nil
}

// GetByID returns a payment with its fee and user loaded
func (s *PaymentService) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.
		Preload("Fee").
		Preload("Fee.Property").
		Preload("Fee.Property.Owner").
		Preload("User").
		First(&payment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("payment %d not found", id)
		}
		return nil, Internal("failed to load payment", err)
	}
	return &payment, nil
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	Status models.PaymentStatus
	FeeID  uint
	UserID uint
	Limit  int
	Offset int
}

// List returns payments matching the filter, newest first
func (s *PaymentService) List(filter PaymentFilter) ([]models.Payment, error) {
	query := s.db.Model(&models.Payment{}).
		Preload("Fee").
		Preload("User")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FeeID > 0 {
		query = query.Where("fee_id = ?", filter.FeeID)
	}
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var payments []models.Payment
	if err := query.Order("id DESC").Find(&payments).Error; err != nil {
		return nil, Internal("failed to list payments", err)
	}
	return payments, nil
}

// Approve moves a pending payment to APPROVED and settles it against its fee.
// The payment and fee updates commit together; the receipt and notification
// run afterwards so their failure cannot undo the settlement.
func (s *PaymentService) Approve(id uint) (*ApproveResult, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, Internal("failed to begin transaction", tx.Error)
	}

	var payment models.Payment
	err := tx.
		Preload("Fee").
		Preload("Fee.Property").
		Preload("Fee.Property.Owner").
		Preload("User").
		First(&payment, id).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("payment %d not found", id)
		}
		return nil, Internal("failed to load payment", err)
	}

	if payment.Status != models.PaymentStatusPending {
		tx.Rollback()
		return nil, Validation("payment %d is %s, only pending payments can be approved", id, payment.Status)
	}

	payment.Status = models.PaymentStatusApproved
	payment.UpdatedAt = time.Now()
	if err := tx.Save(&payment).Error; err != nil {
		tx.Rollback()
		return nil, Internal("failed to approve payment", err)
	}

	if err := s.fees.ApplyPayment(tx, &payment.Fee, payment.Amount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, Internal("failed to commit approval", err)
	}

	result := &ApproveResult{Payment: &payment}

	// Receipt issuance runs in its own transaction after the approval is
	// durable; a failure here leaves the payment approved without a
	// receipt, to be regenerated manually
	err = s.db.Transaction(func(tx *gorm.DB) error {
		receipt, issueErr := s.receipts.Issue(tx, IssueReceiptInput{
			Source:      models.PaymentSource(payment.ID),
			Prefix:      PrefixReceipt,
			IssueDate:   time.Now(),
			TotalAmount: payment.Amount,
			Property:    &payment.Fee.Property,
			FeePeriod:   fmt.Sprintf("Cuota %s", payment.Fee.Reference),
			Notes:       payment.Notes,
		})
		if issueErr != nil {
			return issueErr
		}
		result.Receipt = receipt
		return nil
	})
	if err != nil {
		result.ReceiptErr = err
		utils.LogError("Receipt issuance failed for payment %d: %v", payment.ID, err)
	}

	if s.email != nil && payment.User.Email != "" {
		if err := s.email.SendPaymentApprovedNotification(&payment.User, &payment, result.Receipt); err != nil {
			result.EmailErr = err
			utils.LogError("Approval notification failed for payment %d: %v", payment.ID, err)
		}
	}

	return result, nil
}

// RegenerateReceipt issues the receipt for an approved payment that is
// missing one, typically after issuance failed during approval. Duplicate
// requests are rejected by the issuance path.
func (s *PaymentService) RegenerateReceipt(paymentID uint) (*models.Receipt, error) {
	payment, err := s.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusApproved {
		return nil, Validation("payment %d is %s, receipts are only issued for approved payments", paymentID, payment.Status)
	}

	var receipt *models.Receipt
	err = s.db.Transaction(func(tx *gorm.DB) error {
		issued, issueErr := s.receipts.Issue(tx, IssueReceiptInput{
			Source:      models.PaymentSource(payment.ID),
			Prefix:      PrefixReceipt,
			IssueDate:   time.Now(),
			TotalAmount: payment.Amount,
			Property:    &payment.Fee.Property,
			FeePeriod:   fmt.Sprintf("Cuota %s", payment.Fee.Reference),
			Notes:       payment.Notes,
		})
		if issueErr != nil {
			return issueErr
		}
		receipt = issued
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Reject moves a pending payment to REJECTED without touching the fee
func (s *PaymentService) Reject(id uint, notes string) (*models.Payment, error) {
	payment, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusPending {
		return nil, Validation("payment %d is %s, only pending payments can be rejected", id, payment.Status)
	}

	payment.Status = models.PaymentStatusRejected
	if notes != "" {
		payment.Notes = notes
	}
	payment.UpdatedAt = time.Now()

	if err := s.db.Save(payment).Error; err != nil {
		return nil, Internal("failed to reject payment", err)
	}
	return payment, nil
}

// BulkApprove approves a list of payments. Each id is processed on its own; a
// failure is recorded and does not stop the remaining ids.
func (s *PaymentService) BulkApprove(ids []uint) *BulkApproveResult {
	result := &BulkApproveResult{}

	for _, id := range ids {
		if _, err := s.Approve(id); err != nil {
			result.Errors = append(result.Errors, BulkOperationError{ID: id, Error: err.Error()})
			continue
		}
		result.Approved = append(result.Approved, id)
	}

	return result
}

// Expected column order of the import spreadsheet
var importColumns = []string{"Villa", "Fila", "Número", "Año", "Mes", "Monto", "Fecha de Pago", "Notas"}

// BulkImport reads a spreadsheet of already-collected payments. Each valid
// row inserts an approved payment and settles its fee directly; invalid rows
// are collected as errors and do not stop the rest of the sheet.
func (s *PaymentService) BulkImport(r io.Reader, adminID uint) (*BulkImportResult, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, Validation("could not read the spreadsheet: %s", err.Error())
	}
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, Validation("could not read sheet rows: %s", err.Error())
	}
	if len(rows) < 2 {
		return nil, Validation("the spreadsheet has no data rows")
	}

	result := &BulkImportResult{}
	for i, row := range rows[1:] {
		rowNumber := i + 2 // 1-based, after the header
		if err := s.importRow(row, adminID); err != nil {
			result.Errors = append(result.Errors, BulkOperationError{Row: rowNumber, Error: err.Error()})
			continue
		}
		result.Created++
	}

	utils.LogInfo("Bulk import created %d payments, %d rows failed", result.Created, len(result.Errors))
	return result, nil
}

// importRow processes one spreadsheet row inside its own transaction
func (s *PaymentService) importRow(row []string, adminID uint) error {
	if len(row) < 6 {
		return fmt.Errorf("row has %d columns, expected at least 6 (%s)", len(row), strings.Join(importColumns[:6], ", "))
	}

	villa := strings.TrimSpace(row[0])
	rowLetter := strings.TrimSpace(row[1])
	number, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return fmt.Errorf("invalid property number %q", row[2])
	}
	year, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return fmt.Errorf("invalid year %q", row[3])
	}
	month, err := strconv.Atoi(strings.TrimSpace(row[4]))
	if err != nil || month < 1 || month > 12 {
		return fmt.Errorf("invalid month %q", row[4])
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid amount %q", row[5])
	}

	paymentDate := time.Now()
	if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
		paymentDate, err = parseImportDate(strings.TrimSpace(row[6]))
		if err != nil {
			return err
		}
	}
	if paymentDate.After(time.Now().Add(24 * time.Hour)) {
		return fmt.Errorf("payment date %s is in the future", paymentDate.Format("2006-01-02"))
	}

	notes := ""
	if len(row) > 7 {
		notes = strings.TrimSpace(row[7])
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var property models.Property
		err := tx.Where("villa = ? AND row_letter = ? AND number = ?", villa, rowLetter, number).
			First(&property).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("property %s %s-%d not found", villa, rowLetter, number)
			}
			return err
		}

		var fee models.Fee
		err = tx.Where("property_id = ? AND year = ? AND month = ? AND status IN ?",
			property.ID, year, month,
			[]models.FeeStatus{models.FeeStatusPending, models.FeeStatusPartiallyPaid}).
			First(&fee).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("no pending fee for property %s %s-%d in %d-%02d", villa, rowLetter, number, year, month)
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.Payment{}).Where("fee_id = ?", fee.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.New("Payment already exists for this fee")
		}

		payment := models.Payment{
			FeeID:       fee.ID,
			UserID:      adminID,
			Amount:      amount,
			PaymentDate: paymentDate,
			Status:      models.PaymentStatusApproved,
			Notes:       notes,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		// Imported payments are already-collected money; the fee settles
		// immediately without a separate approval step
		return s.fees.ApplyPayment(tx, &fee, amount)
	})
}

// parseImportDate accepts the date layouts the spreadsheets arrive in
func parseImportDate(value string) (time.Time, error) {
	layouts := []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid payment date %q", value)
}
