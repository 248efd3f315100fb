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

// CreateMiscellaneousPaymentDTO carries data for an ad-hoc owner payment
type CreateMiscellaneousPaymentDTO struct {
	PropertyID  *uint                           `json:"property_id"`
	PaymentType models.MiscellaneousPaymentType `json:"payment_type" validate:"required,oneof=MAINTENANCE REPAIRS SERVICES PENALTIES OTHER"`
	Amount      float64                         `json:"amount" validate:"required,gt=0"`
	PaymentDate time.Time                       `json:"payment_date"`
	Description string                          `json:"description" validate:"required,min=3,max=255"`
	ReceiptFile string                          `json:"receipt_file"`
	Notes       string                          `json:"notes" validate:"max=255"`
	UserID      uint                            `json:"-" validate:"required"`
}

// ApproveMiscellaneousResult reports an approval outcome; ReceiptErr records
// a failed receipt issuance without undoing the approval
type ApproveMiscellaneousResult struct {
	Payment    *models.MiscellaneousPayment
	Receipt    *models.Receipt
	ReceiptErr error
}

// MiscellaneousPaymentService manages ad-hoc payments not tied to a fee
type MiscellaneousPaymentService struct {
	db        *gorm.DB
	validator *validator.Validate
	receipts  *ReceiptService
}

// NewMiscellaneousPaymentService creates a new MiscellaneousPaymentService
func NewMiscellaneousPaymentService(db *gorm.DB, receipts *ReceiptService) *MiscellaneousPaymentService {
	return &MiscellaneousPaymentService{
		db:        db,
		validator: validator.New(),
		receipts:  receipts,
	}
}

// Create inserts a pending miscellaneous payment. Property and owner details
// are snapshotted now so later receipt issuance does not depend on the
// property record staying unchanged.
func (s *MiscellaneousPaymentService) Create(dto CreateMiscellaneousPaymentDTO) (*models.MiscellaneousPayment, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	payment := &models.MiscellaneousPayment{
		PropertyID:  dto.PropertyID,
		UserID:      dto.UserID,
		PaymentType: dto.PaymentType,
		Amount:      dto.Amount,
		PaymentDate: dto.PaymentDate,
		ReceiptFile: dto.ReceiptFile,
		Status:      models.PaymentStatusPending,
		Description: dto.Description,
		Notes:       dto.Notes,
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now()
	}

	if dto.PropertyID != nil {
		var property models.Property
		if err := s.db.Preload("Owner").First(&property, *dto.PropertyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NotFound("property %d not found", *dto.PropertyID)
			}
			return nil, Internal("failed to load property", err)
		}
		payment.PropertyDetails, payment.OwnerDetails = SnapshotProperty(&property)
	}

	if err := s.db.Create(payment).Error; err != nil {
		return nil, Internal("failed to create miscellaneous payment", err)
	}

	utils.LogInfo("Miscellaneous payment %d created: %s (%.2f)", payment.ID, payment.Description, payment.Amount)
	return payment, nil
}

// GetByID returns a miscellaneous payment
func (s *MiscellaneousPaymentService) GetByID(id uint) (*models.MiscellaneousPayment, error) {
	var payment models.MiscellaneousPayment
	err := s.db.Preload("Property").Preload("User").First(&payment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("miscellaneous payment %d not found", id)
		}
		return nil, Internal("failed to load miscellaneous payment", err)
	}
	return &payment, nil
}

// List returns miscellaneous payments, newest first
func (s *MiscellaneousPaymentService) List(status models.PaymentStatus, limit, offset int) ([]models.MiscellaneousPayment, error) {
	query := s.db.Model(&models.MiscellaneousPayment{}).Preload("Property")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var payments []models.MiscellaneousPayment
	if err := query.Order("id DESC").Find(&payments).Error; err != nil {
		return nil, Internal("failed to list miscellaneous payments", err)
	}
	return payments, nil
}

// Approve moves a pending miscellaneous payment to APPROVED and issues its
// OTR receipt from the snapshots captured at creation. A receipt failure is
// recorded on the result, not propagated.
func (s *MiscellaneousPaymentService) Approve(id uint) (*ApproveMiscellaneousResult, error) {
	payment, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusPending {
		return nil, Validation("miscellaneous payment %d is %s, only pending payments can be approved", id, payment.Status)
	}

	payment.Status = models.PaymentStatusApproved
	payment.UpdatedAt = time.Now()
	if err := s.db.Save(payment).Error; err != nil {
		return nil, Internal("failed to approve miscellaneous payment", err)
	}

	result := &ApproveMiscellaneousResult{Payment: payment}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		receipt, issueErr := s.receipts.Issue(tx, IssueReceiptInput{
			Source:           models.MiscellaneousSource(payment.ID),
			Prefix:           PrefixMiscellaneous,
			IssueDate:        time.Now(),
			TotalAmount:      payment.Amount,
			PropertySnapshot: payment.PropertyDetails,
			OwnerSnapshot:    payment.OwnerDetails,
			FeePeriod:        fmt.Sprintf("Pago varios: %s", payment.Description),
			Notes:            "Recibo generado automáticamente al aprobar el pago varios",
		})
		if issueErr != nil {
			return issueErr
		}
		result.Receipt = receipt
		return nil
	})
	if err != nil {
		result.ReceiptErr = err
		utils.LogError("Receipt issuance failed for miscellaneous payment %d: %v", payment.ID, err)
	}

	return result, nil
}

// Update applies a partial update to a pending payment
func (s *MiscellaneousPaymentService) Update(id uint, amount *float64, description, notes *string) (*models.MiscellaneousPayment, error) {
	payment, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusPending {
		return nil, Validation("miscellaneous payment %d is %s and can no longer be edited", id, payment.Status)
	}

	if amount != nil {
		if *amount <= 0 {
			return nil, Validation("amount must be greater than zero")
		}
		payment.Amount = *amount
	}
	if description != nil {
		payment.Description = *description
	}
	if notes != nil {
		payment.Notes = *notes
	}
	payment.UpdatedAt = time.Now()

	if err := s.db.Save(payment).Error; err != nil {
		return nil, Internal("failed to update miscellaneous payment", err)
	}
	return payment, nil
}

// Delete removes a pending payment
func (s *MiscellaneousPaymentService) Delete(id uint) error {
	payment, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if payment.Status == models.PaymentStatusApproved {
		return Invariant("approved miscellaneous payments cannot be deleted")
	}

	if err := s.db.Delete(&models.MiscellaneousPayment{}, id).Error; err != nil {
		return Internal("failed to delete miscellaneous payment", err)
	}
	return nil
}
