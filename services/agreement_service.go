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

// CreateAgreementDTO carries data for a new installment plan
type CreateAgreementDTO struct {
	PropertyID        uint      `json:"property_id" validate:"required"`
	FeeIDs            []uint    `json:"fee_ids" validate:"required,min=1"`
	MonthlyAmount     float64   `json:"monthly_amount" validate:"required,gt=0"`
	InstallmentsCount int       `json:"installments_count" validate:"required,gt=0"`
	StartDate         time.Time `json:"start_date" validate:"required"`
	Notes             string    `json:"notes" validate:"max=255"`
	UserID            uint      `json:"-" validate:"required"`
}

// CreateAgreementResult reports agreement creation. DocumentErr records a
// failed document render without undoing the agreement.
type CreateAgreementResult struct {
	Agreement   *models.Agreement
	DocumentErr error
}

// PayInstallmentDTO carries data for settling the next pending installment
type PayInstallmentDTO struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference" validate:"max=100"`
	Notes     string  `json:"notes" validate:"max=255"`
}

// PayInstallmentResult reports an installment payment. EmailErr records a
// failed completion notification without undoing the payment.
type PayInstallmentResult struct {
	Installment *models.AgreementInstallment
	Receipt     *models.Receipt
	Agreement   *models.Agreement
	Completed   bool
	EmailErr    error
}

// AgreementService converts accumulated fee debt into installment plans and
// settles their payments
type AgreementService struct {
	db           *gorm.DB
	validator    *validator.Validate
	correlatives *CorrelativeService
	receipts     *ReceiptService
	documents    *DocumentService
	email        *EmailService
}

// NewAgreementService creates a new AgreementService
func NewAgreementService(db *gorm.DB, correlatives *CorrelativeService, receipts *ReceiptService, documents *DocumentService, email *EmailService) *AgreementService {
	return &AgreementService{
		db:           db,
		validator:    validator.New(),
		correlatives: correlatives,
		receipts:     receipts,
		documents:    documents,
		email:        email,
	}
}

// Create builds an agreement over a set of pending fees. Everything up to
// the commit is one transaction: the agreement row, the fee status flips and
// the installment schedule appear together or not at all. The document render
// runs after the commit and is best-effort.
func (s *AgreementService) Create(dto CreateAgreementDTO, actor *models.User) (*CreateAgreementResult, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, Internal("failed to begin transaction", tx.Error)
	}

	var property models.Property
	if err := tx.Preload("Owner").First(&property, dto.PropertyID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("property %d not found", dto.PropertyID)
		}
		return nil, Internal("failed to load property", err)
	}

	if !actor.IsAdmin() && !property.OwnedBy(actor.ID) {
		tx.Rollback()
		return nil, PermissionDenied("only administrators or the property owner may create an agreement")
	}

	var fees []models.Fee
	if err := tx.Where("id IN ?", dto.FeeIDs).Find(&fees).Error; err != nil {
		tx.Rollback()
		return nil, Internal("failed to load fees", err)
	}
	if len(fees) != len(dto.FeeIDs) {
		tx.Rollback()
		return nil, NotFound("one or more fees do not exist")
	}

	totalDebt := 0.0
	for _, fee := range fees {
		if fee.PropertyID != dto.PropertyID {
			tx.Rollback()
			return nil, Validation("fee %d does not belong to property %d", fee.ID, dto.PropertyID)
		}
		if fee.Status != models.FeeStatusPending {
			tx.Rollback()
			return nil, Validation("fee %d is %s, only pending fees can enter an agreement", fee.ID, fee.Status)
		}
		totalDebt += fee.Amount
	}
	totalDebt = utils.Round2(totalDebt)

	number, err := s.correlatives.Next(tx, PrefixAgreement, time.Now().Year())
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Installments are spaced by a fixed 30 days, not calendar months
	agreement := &models.Agreement{
		PropertyID:        dto.PropertyID,
		UserID:            dto.UserID,
		TotalDebt:         totalDebt,
		MonthlyAmount:     dto.MonthlyAmount,
		InstallmentsCount: dto.InstallmentsCount,
		StartDate:         dto.StartDate,
		EndDate:           dto.StartDate.AddDate(0, 0, 30*dto.InstallmentsCount),
		Status:            models.AgreementStatusActive,
		AgreementNumber:   number,
		Notes:             dto.Notes,
	}

	if err := tx.Create(agreement).Error; err != nil {
		tx.Rollback()
		return nil, Internal("failed to create agreement", err)
	}

	for i := range fees {
		fees[i].Status = models.FeeStatusAgreement
		fees[i].AgreementID = &agreement.ID
		fees[i].UpdatedAt = time.Now()
		if err := tx.Save(&fees[i]).Error; err != nil {
			tx.Rollback()
			return nil, Internal("failed to lock fee into agreement", err)
		}
	}

	installments := make([]models.AgreementInstallment, dto.InstallmentsCount)
	for i := 0; i < dto.InstallmentsCount; i++ {
		installments[i] = models.AgreementInstallment{
			AgreementID:       agreement.ID,
			InstallmentNumber: i + 1,
			Amount:            dto.MonthlyAmount,
			DueDate:           dto.StartDate.AddDate(0, 0, 30*i),
			Status:            models.InstallmentStatusPending,
		}
		if err := tx.Create(&installments[i]).Error; err != nil {
			tx.Rollback()
			return nil, Internal("failed to create installment", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, Internal("failed to commit agreement", err)
	}

	agreement.Fees = fees
	agreement.Installments = installments

	utils.LogInfo("Agreement %s created for property %d covering %d fees, debt %.2f",
		agreement.AgreementNumber, agreement.PropertyID, len(fees), totalDebt)

	result := &CreateAgreementResult{Agreement: agreement}

	// The printable agreement document is a convenience artifact; losing
	// it does not invalidate the plan
	if s.documents != nil {
		path, err := s.documents.RenderAgreement(agreement, &property, fees, installments)
		if err != nil {
			result.DocumentErr = err
			utils.LogError("Agreement document render failed for %s: %v", agreement.AgreementNumber, err)
		} else {
			agreement.PDFFile = path
			if err := s.db.Model(agreement).Update("pdf_file", path).Error; err != nil {
				utils.LogError("Failed to store agreement document path for %s: %v", agreement.AgreementNumber, err)
			}
		}
	}

	return result, nil
}

// GetByID returns an agreement with its fees and installments loaded
func (s *AgreementService) GetByID(id uint) (*models.Agreement, error) {
	var agreement models.Agreement
	err := s.db.
		Preload("Property").
		Preload("Property.Owner").
		Preload("Fees").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("agreement_installments.installment_number ASC")
		}).
		First(&agreement, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("agreement %d not found", id)
		}
		return nil, Internal("failed to load agreement", err)
	}
	return &agreement, nil
}

// AgreementFilter narrows agreement listings
type AgreementFilter struct {
	PropertyID uint
	UserID     uint
	Status     models.AgreementStatus
}

// List returns agreements matching the filter, newest first
func (s *AgreementService) List(filter AgreementFilter) ([]models.Agreement, error) {
	query := s.db.Model(&models.Agreement{}).
		Preload("Property").
		Preload("Installments")

	if filter.PropertyID > 0 {
		query = query.Where("property_id = ?", filter.PropertyID)
	}
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var agreements []models.Agreement
	if err := query.Order("id DESC").Find(&agreements).Error; err != nil {
		return nil, Internal("failed to list agreements", err)
	}
	return agreements, nil
}

// UpdateAgreementDTO carries the mutable agreement fields
type UpdateAgreementDTO struct {
	Status *models.AgreementStatus `json:"status" validate:"omitempty,oneof=ACTIVE COMPLETED CANCELLED DEFAULTED"`
	Notes  *string                 `json:"notes" validate:"omitempty,max=255"`
}

// Update applies a partial update to an agreement
func (s *AgreementService) Update(id uint, dto UpdateAgreementDTO) (*models.Agreement, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	agreement, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.Status != nil {
		agreement.Status = *dto.Status
	}
	if dto.Notes != nil {
		agreement.Notes = *dto.Notes
	}
	agreement.UpdatedAt = time.Now()

	if err := s.db.Save(agreement).Error; err != nil {
		return nil, Internal("failed to update agreement", err)
	}
	return agreement, nil
}

// Delete dissolves an agreement: covered fees go back to PENDING and the
// installment schedule is removed, all in one transaction
func (s *AgreementService) Delete(id uint, actor *models.User) error {
	if !actor.IsAdmin() {
		return PermissionDenied("only administrators may delete agreements")
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return Internal("failed to begin transaction", tx.Error)
	}

	var agreement models.Agreement
	if err := tx.First(&agreement, id).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound("agreement %d not found", id)
		}
		return Internal("failed to load agreement", err)
	}

	err := tx.Model(&models.Fee{}).
		Where("agreement_id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.FeeStatusPending,
			"agreement_id": nil,
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		tx.Rollback()
		return Internal("failed to release agreement fees", err)
	}

	if err := tx.Where("agreement_id = ?", id).Delete(&models.AgreementInstallment{}).Error; err != nil {
		tx.Rollback()
		return Internal("failed to delete installments", err)
	}

	if err := tx.Delete(&models.Agreement{}, id).Error; err != nil {
		tx.Rollback()
		return Internal("failed to delete agreement", err)
	}

	if err := tx.Commit().Error; err != nil {
		return Internal("failed to commit agreement deletion", err)
	}

	utils.LogInfo("Agreement %s deleted, fees released back to pending", agreement.AgreementNumber)
	return nil
}

// PayNextInstallment settles the earliest-due pending installment visible to
// the actor. Administrators see every agreement; owners only their own. The
// installment update and the CONV receipt commit together; paying the last
// installment flips the agreement to COMPLETED in the same transaction.
func (s *AgreementService) PayNextInstallment(dto PayInstallmentDTO, actor *models.User) (*PayInstallmentResult, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, Internal("failed to begin transaction", tx.Error)
	}

	query := tx.Model(&models.AgreementInstallment{}).
		Joins("JOIN agreements ON agreements.id = agreement_installments.agreement_id").
		Where("agreement_installments.status IN ?", []models.AgreementInstallmentStatus{
			models.InstallmentStatusPending, models.InstallmentStatusOverdue,
		}).
		Where("agreements.status = ?", models.AgreementStatusActive)
	if !actor.IsAdmin() {
		query = query.Where("agreements.user_id = ?", actor.ID)
	}

	var installment models.AgreementInstallment
	err := query.Order("agreement_installments.due_date ASC").First(&installment).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("no pending installments found")
		}
		return nil, Internal("failed to find next installment", err)
	}

	if !utils.AmountsEqual(dto.Amount, installment.Amount) {
		tx.Rollback()
		return nil, Invariant("amount %.2f does not match the installment amount %.2f", dto.Amount, installment.Amount)
	}

	var agreement models.Agreement
	if err := tx.Preload("Property").Preload("Property.Owner").First(&agreement, installment.AgreementID).Error; err != nil {
		tx.Rollback()
		return nil, Internal("failed to load agreement", err)
	}

	now := time.Now()
	installment.Status = models.InstallmentStatusPaid
	installment.PaidDate = &now
	installment.PaymentReference = dto.Reference
	if dto.Notes != "" {
		installment.Notes = dto.Notes
	}
	installment.UpdatedAt = now
	if err := tx.Save(&installment).Error; err != nil {
		tx.Rollback()
		return nil, Internal("failed to mark installment paid", err)
	}

	// The receipt union links to payment records, not installments, so the
	// settlement is persisted as an approved miscellaneous payment and the
	// CONV receipt points at it
	settlement := models.MiscellaneousPayment{
		PropertyID:  &agreement.PropertyID,
		UserID:      actor.ID,
		PaymentType: models.MiscTypeOther,
		Amount:      installment.Amount,
		PaymentDate: now,
		Status:      models.PaymentStatusApproved,
		Description: fmt.Sprintf("Convenio %s - Cuota %d", agreement.AgreementNumber, installment.InstallmentNumber),
		Notes:       dto.Notes,
	}
	settlement.PropertyDetails, settlement.OwnerDetails = SnapshotProperty(&agreement.Property)
	if err := tx.Create(&settlement).Error; err != nil {
		tx.Rollback()
		return nil, Internal("failed to record installment settlement", err)
	}

	receipt, err := s.receipts.Issue(tx, IssueReceiptInput{
		Source:      models.MiscellaneousSource(settlement.ID),
		Prefix:      PrefixAgreementPaid,
		IssueDate:   now,
		TotalAmount: installment.Amount,
		Property:    &agreement.Property,
		FeePeriod:   fmt.Sprintf("Convenio %s - Cuota %d", agreement.AgreementNumber, installment.InstallmentNumber),
		Notes:       dto.Notes,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	var remaining int64
	err = tx.Model(&models.AgreementInstallment{}).
		Where("agreement_id = ? AND status IN ?", agreement.ID, []models.AgreementInstallmentStatus{
			models.InstallmentStatusPending, models.InstallmentStatusOverdue,
		}).
		Count(&remaining).Error
	if err != nil {
		tx.Rollback()
		return nil, Internal("failed to count remaining installments", err)
	}

	completed := remaining == 0
	if completed {
		agreement.Status = models.AgreementStatusCompleted
		agreement.UpdatedAt = now
		if err := tx.Save(&agreement).Error; err != nil {
			tx.Rollback()
			return nil, Internal("failed to complete agreement", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, Internal("failed to commit installment payment", err)
	}

	utils.LogInfo("Installment %d of agreement %s paid, receipt %s",
		installment.InstallmentNumber, agreement.AgreementNumber, receipt.CorrelativeNumber)

	result := &PayInstallmentResult{
		Installment: &installment,
		Receipt:     receipt,
		Agreement:   &agreement,
		Completed:   completed,
	}

	if completed && s.email != nil && agreement.Property.Owner != nil && agreement.Property.Owner.Email != "" {
		if err := s.email.SendAgreementCompletedNotification(agreement.Property.Owner, &agreement); err != nil {
			result.EmailErr = err
			utils.LogError("Completion notification failed for agreement %s: %v", agreement.AgreementNumber, err)
		}
	}

	return result, nil
}
