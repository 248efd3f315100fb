package services

import (
	"errors"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreateFeeScheduleDTO carries data for a new recurring-charge template
type CreateFeeScheduleDTO struct {
	Amount        float64    `json:"amount" validate:"required,gt=0"`
	Description   string     `json:"description" validate:"required,min=3,max=255"`
	EffectiveDate time.Time  `json:"effective_date" validate:"required"`
	EndDate       *time.Time `json:"end_date"`
	DueDay        int        `json:"due_day" validate:"required,min=1,max=31"`
}

// UpdateFeeScheduleDTO carries partial updates; nil fields are left unchanged
type UpdateFeeScheduleDTO struct {
	Amount      *float64   `json:"amount" validate:"omitempty,gt=0"`
	Description *string    `json:"description" validate:"omitempty,min=3,max=255"`
	EndDate     *time.Time `json:"end_date"`
	IsActive    *bool      `json:"is_active"`
	DueDay      *int       `json:"due_day" validate:"omitempty,min=1,max=31"`
}

// FeeScheduleService manages recurring-charge templates
type FeeScheduleService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewFeeScheduleService creates a new FeeScheduleService
func NewFeeScheduleService(db *gorm.DB) *FeeScheduleService {
	return &FeeScheduleService{
		db:        db,
		validator: validator.New(),
	}
}

// Create inserts a new fee schedule
func (s *FeeScheduleService) Create(dto CreateFeeScheduleDTO) (*models.FeeSchedule, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}
	if dto.EndDate != nil && dto.EndDate.Before(dto.EffectiveDate) {
		return nil, Validation("end date must not precede the effective date")
	}

	schedule := &models.FeeSchedule{
		Amount:        dto.Amount,
		Description:   dto.Description,
		EffectiveDate: dto.EffectiveDate,
		EndDate:       dto.EndDate,
		IsActive:      true,
		DueDay:        dto.DueDay,
	}

	if err := s.db.Create(schedule).Error; err != nil {
		return nil, Internal("failed to create fee schedule", err)
	}

	utils.LogInfo("Fee schedule %d created: %s (%.2f, due day %d)", schedule.ID, schedule.Description, schedule.Amount, schedule.DueDay)
	return schedule, nil
}

// GetByID returns a single schedule
func (s *FeeScheduleService) GetByID(id uint) (*models.FeeSchedule, error) {
	var schedule models.FeeSchedule
	if err := s.db.First(&schedule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("fee schedule %d not found", id)
		}
		return nil, Internal("failed to load fee schedule", err)
	}
	return &schedule, nil
}

// List returns schedules, optionally only active ones
func (s *FeeScheduleService) List(activeOnly bool) ([]models.FeeSchedule, error) {
	query := s.db.Model(&models.FeeSchedule{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var schedules []models.FeeSchedule
	if err := query.Order("effective_date DESC").Find(&schedules).Error; err != nil {
		return nil, Internal("failed to list fee schedules", err)
	}
	return schedules, nil
}

// Update applies a partial update. Deactivation stops future generation only;
// already-generated fees keep the amount copied at generation time.
func (s *FeeScheduleService) Update(id uint, dto UpdateFeeScheduleDTO) (*models.FeeSchedule, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	schedule, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.Amount != nil {
		schedule.Amount = *dto.Amount
	}
	if dto.Description != nil {
		schedule.Description = *dto.Description
	}
	if dto.EndDate != nil {
		schedule.EndDate = dto.EndDate
	}
	if dto.IsActive != nil {
		schedule.IsActive = *dto.IsActive
	}
	if dto.DueDay != nil {
		schedule.DueDay = *dto.DueDay
	}
	schedule.UpdatedAt = time.Now()

	if err := s.db.Save(schedule).Error; err != nil {
		return nil, Internal("failed to update fee schedule", err)
	}

	return schedule, nil
}

// Delete removes a schedule that has no generated fees; otherwise it is
// deactivated instead so fee history keeps its reference intact
func (s *FeeScheduleService) Delete(id uint) error {
	schedule, err := s.GetByID(id)
	if err != nil {
		return err
	}

	var feeCount int64
	if err := s.db.Model(&models.Fee{}).Where("fee_schedule_id = ?", id).Count(&feeCount).Error; err != nil {
		return Internal("failed to count schedule fees", err)
	}

	if feeCount > 0 {
		schedule.IsActive = false
		schedule.UpdatedAt = time.Now()
		if err := s.db.Save(schedule).Error; err != nil {
			return Internal("failed to deactivate fee schedule", err)
		}
		utils.LogInfo("Fee schedule %d has %d fees, deactivated instead of deleted", id, feeCount)
		return nil
	}

	if err := s.db.Delete(&models.FeeSchedule{}, id).Error; err != nil {
		return Internal("failed to delete fee schedule", err)
	}
	return nil
}
