package services

import (
	"errors"
	"fmt"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreateExpenseDTO carries data for an admin-recorded expenditure
type CreateExpenseDTO struct {
	ExpenseType        models.ExpenseType `json:"expense_type" validate:"required,oneof=MAINTENANCE CLEANING REPAIRS SERVICES UTILITIES SUPPLIES INSURANCE LEGAL ADMINISTRATIVE OTHER"`
	Amount             float64            `json:"amount" validate:"required,gt=0"`
	ExpenseDate        time.Time          `json:"expense_date"`
	Description        string             `json:"description" validate:"required,min=3,max=255"`
	Beneficiary        string             `json:"beneficiary" validate:"required,min=2,max=100"`
	BeneficiaryDetails string             `json:"beneficiary_details" validate:"max=255"`
	ReceiptFile        string             `json:"receipt_file"`
	Notes              string             `json:"notes" validate:"max=255"`
	UserID             uint               `json:"-" validate:"required"`
}

// ApproveExpenseResult reports an approval outcome; ReceiptErr records a
// failed receipt issuance without undoing the approval
type ApproveExpenseResult struct {
	Expense    *models.Expense
	Receipt    *models.Receipt
	ReceiptErr error
}

// ExpenseService manages payments to third parties
type ExpenseService struct {
	db        *gorm.DB
	validator *validator.Validate
	receipts  *ReceiptService
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(db *gorm.DB, receipts *ReceiptService) *ExpenseService {
	return &ExpenseService{
		db:        db,
		validator: validator.New(),
		receipts:  receipts,
	}
}

// Create inserts a pending expense
func (s *ExpenseService) Create(dto CreateExpenseDTO) (*models.Expense, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	expense := &models.Expense{
		UserID:             dto.UserID,
		ExpenseType:        dto.ExpenseType,
		Amount:             dto.Amount,
		ExpenseDate:        dto.ExpenseDate,
		ReceiptFile:        dto.ReceiptFile,
		Status:             models.PaymentStatusPending,
		Description:        dto.Description,
		Beneficiary:        dto.Beneficiary,
		BeneficiaryDetails: dto.BeneficiaryDetails,
		Notes:              dto.Notes,
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = time.Now()
	}

	if err := s.db.Create(expense).Error; err != nil {
		return nil, Internal("failed to create expense", err)
	}

	utils.LogInfo("Expense %d created: %s to %s (%.2f)", expense.ID, expense.Description, expense.Beneficiary, expense.Amount)
	return expense, nil
}

// GetByID returns an expense
func (s *ExpenseService) GetByID(id uint) (*models.Expense, error) {
	var expense models.Expense
	err := s.db.Preload("User").First(&expense, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("expense %d not found", id)
		}
		return nil, Internal("failed to load expense", err)
	}
	return &expense, nil
}

// List returns expenses, newest first
func (s *ExpenseService) List(status models.PaymentStatus, expenseType models.ExpenseType, limit, offset int) ([]models.Expense, error) {
	query := s.db.Model(&models.Expense{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if expenseType != "" {
		query = query.Where("expense_type = ?", expenseType)
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var expenses []models.Expense
	if err := query.Order("expense_date DESC, id DESC").Find(&expenses).Error; err != nil {
		return nil, Internal("failed to list expenses", err)
	}
	return expenses, nil
}

// Approve moves a pending expense to APPROVED and issues its OTR receipt.
// Expense receipts carry no property or owner snapshots. A receipt failure
// is recorded on the result, not propagated.
func (s *ExpenseService) Approve(id uint) (*ApproveExpenseResult, error) {
	expense, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if expense.Status != models.PaymentStatusPending {
		return nil, Validation("expense %d is %s, only pending expenses can be approved", id, expense.Status)
	}

	expense.Status = models.PaymentStatusApproved
	expense.UpdatedAt = time.Now()
	if err := s.db.Save(expense).Error; err != nil {
		return nil, Internal("failed to approve expense", err)
	}

	result := &ApproveExpenseResult{Expense: expense}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		receipt, issueErr := s.receipts.Issue(tx, IssueReceiptInput{
			Source:      models.ExpenseSource(expense.ID),
			Prefix:      PrefixMiscellaneous,
			IssueDate:   time.Now(),
			TotalAmount: expense.Amount,
			FeePeriod:   fmt.Sprintf("Gasto administrativo: %s", expense.Description),
			Notes:       fmt.Sprintf("Beneficiario: %s", expense.Beneficiary),
		})
		if issueErr != nil {
			return issueErr
		}
		result.Receipt = receipt
		return nil
	})
	if err != nil {
		result.ReceiptErr = err
		utils.LogError("Receipt issuance failed for expense %d: %v", expense.ID, err)
	}

	return result, nil
}

// Update applies a partial update to a pending expense
func (s *ExpenseService) Update(id uint, amount *float64, description, beneficiary, notes *string) (*models.Expense, error) {
	expense, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if expense.Status != models.PaymentStatusPending {
		return nil, Validation("expense %d is %s and can no longer be edited", id, expense.Status)
	}

	if amount != nil {
		if *amount <= 0 {
			return nil, Validation("amount must be greater than zero")
		}
		expense.Amount = *amount
	}
	if description != nil {
		expense.Description = *description
	}
	if beneficiary != nil {
		expense.Beneficiary = *beneficiary
	}
	if notes != nil {
		expense.Notes = *notes
	}
	expense.UpdatedAt = time.Now()

	if err := s.db.Save(expense).Error; err != nil {
		return nil, Internal("failed to update expense", err)
	}
	return expense, nil
}

// Delete removes a pending expense
func (s *ExpenseService) Delete(id uint) error {
	expense, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if expense.Status == models.PaymentStatusApproved {
		return Invariant("approved expenses cannot be deleted")
	}

	if err := s.db.Delete(&models.Expense{}, id).Error; err != nil {
		return Internal("failed to delete expense", err)
	}
	return nil
}
