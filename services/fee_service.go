package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Fee generation modes. Automatic mode is what the scheduler runs: it only
// considers schedules whose due day matches today. Manual mode takes whatever
// the administrator asked for.
const (
	GenerationModeManual    = "manual"
	GenerationModeAutomatic = "automatic"
)

// GenerateFeesDTO carries parameters for a fee generation batch
type GenerateFeesDTO struct {
	Mode        string `json:"mode" validate:"required,oneof=manual automatic"`
	Year        int    `json:"year"`
	Months      []int  `json:"months"`
	ScheduleIDs []uint `json:"schedule_ids"`
}

// UpdateFeeDTO carries partial fee updates. There is intentionally no amount
// field: a fee's amount is fixed at generation time, and amount values sent by
// clients are dropped before this DTO is built.
type UpdateFeeDTO struct {
	Status  *models.FeeStatus `json:"status" validate:"omitempty,oneof=PENDING COMPLETED PARTIALLY_PAID CANCELLED AGREEMENT"`
	DueDate *time.Time        `json:"due_date"`
	Notes   *string           `json:"notes" validate:"omitempty,max=255"`
}

// FeeFilter narrows fee listings
type FeeFilter struct {
	Year       int
	Month      int
	Statuses   []models.FeeStatus
	PropertyID uint
	UserID     uint
	Limit      int
	Offset     int
}

// FeeService generates and manages billing instances
type FeeService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewFeeService creates a new FeeService
func NewFeeService(db *gorm.DB) *FeeService {
	return &FeeService{
		db:        db,
		validator: validator.New(),
	}
}

// clampedDueDate builds the due date for (year, month, dueDay), clamping the
// day to the month's last day when the month is shorter
func clampedDueDate(year, month, dueDay int) time.Time {
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if dueDay > lastDay {
		dueDay = lastDay
	}
	return time.Date(year, time.Month(month), dueDay, 0, 0, 0, 0, time.UTC)
}

// Generate materializes one fee per (property, schedule, month) for the
// requested batch. Re-running with the same parameters is safe: periods that
// already have a fee are skipped. A failure on one fee is logged and does not
// abort the rest of the batch.
func (s *FeeService) Generate(dto GenerateFeesDTO) (int, error) {
	if err := s.validator.Struct(dto); err != nil {
		return 0, Validation("%s", translateValidationErrors(err))
	}

	now := time.Now()

	year := dto.Year
	if year == 0 {
		year = now.Year()
	}

	months := dto.Months
	if len(months) == 0 {
		months = []int{int(now.Month())}
	}
	for _, m := range months {
		if m < 1 || m > 12 {
			return 0, Validation("month %d is out of range 1-12", m)
		}
	}

	schedules, err := s.resolveSchedules(dto.ScheduleIDs, dto.Mode, now)
	if err != nil {
		return 0, err
	}
	if len(schedules) == 0 {
		return 0, nil
	}

	var properties []models.Property
	if err := s.db.Find(&properties).Error; err != nil {
		return 0, Internal("failed to load properties", err)
	}

	referencePrefix := "Manual"
	if dto.Mode == GenerationModeAutomatic {
		referencePrefix = "Auto"
	}

	created := 0
	for _, month := range months {
		for _, schedule := range schedules {
			for _, property := range properties {
				ok, err := s.generateOne(schedule, property, year, month, referencePrefix, now)
				if err != nil {
					utils.LogError("Fee generation skipped property %d, schedule %d, %d-%02d: %v",
						property.ID, schedule.ID, year, month, err)
					continue
				}
				if ok {
					created++
				}
			}
		}
	}

	utils.LogInfo("Fee generation (%s) for %d months=%v created %d fees", dto.Mode, year, months, created)
	return created, nil
}

// resolveSchedules picks the schedules a generation batch targets
func (s *FeeService) resolveSchedules(ids []uint, mode string, now time.Time) ([]models.FeeSchedule, error) {
	var schedules []models.FeeSchedule

	if len(ids) > 0 {
		if err := s.db.Where("id IN ?", ids).Find(&schedules).Error; err != nil {
			return nil, Internal("failed to load fee schedules", err)
		}
		if len(schedules) != len(ids) {
			return nil, NotFound("one or more fee schedules do not exist")
		}
	} else {
		if err := s.db.Where("is_active = ?", true).Find(&schedules).Error; err != nil {
			return nil, Internal("failed to load active fee schedules", err)
		}
	}

	// The scheduler only generates fees on the schedule's due day
	if mode == GenerationModeAutomatic {
		filtered := schedules[:0]
		for _, schedule := range schedules {
			if schedule.DueDay == now.Day() {
				filtered = append(filtered, schedule)
			}
		}
		schedules = filtered
	}

	return schedules, nil
}

// generateOne inserts the fee for a single (property, schedule, period) if it
// does not exist yet. Returns whether a fee was created.
func (s *FeeService) generateOne(schedule models.FeeSchedule, property models.Property, year, month int, referencePrefix string, now time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&models.Fee{}).
		Where("property_id = ? AND fee_schedule_id = ? AND year = ? AND month = ?",
			property.ID, schedule.ID, year, month).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	// When backfilling a past or future period, the generated date is the
	// first day of that period rather than the wall clock
	generatedDate := now
	if year != now.Year() || month != int(now.Month()) {
		generatedDate = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	}

	fee := models.Fee{
		PropertyID:    property.ID,
		FeeScheduleID: schedule.ID,
		UserID:        property.OwnerID,
		Amount:        schedule.Amount,
		PaidAmount:    0,
		GeneratedDate: generatedDate,
		Year:          year,
		Month:         month,
		DueDate:       clampedDueDate(year, month, schedule.DueDay),
		Status:        models.FeeStatusPending,
		Reference:     fmt.Sprintf("%s-%d-%02d", referencePrefix, year, month),
	}

	if err := s.db.Create(&fee).Error; err != nil {
		// The unique period index backs up the existence check; a
		// concurrent insert of the same period is a skip, not a failure
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isDuplicateKeyError detects unique-constraint violations across drivers
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// GetByID returns a fee with its property and schedule loaded
func (s *FeeService) GetByID(id uint) (*models.Fee, error) {
	var fee models.Fee
	err := s.db.
		Preload("Property").
		Preload("Property.Owner").
		Preload("FeeSchedule").
		First(&fee, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("fee %d not found", id)
		}
		return nil, Internal("failed to load fee", err)
	}
	return &fee, nil
}

// List returns fees matching the filter, newest period first
func (s *FeeService) List(filter FeeFilter) ([]models.Fee, error) {
	query := s.db.Model(&models.Fee{}).
		Preload("Property").
		Preload("FeeSchedule")

	if filter.Year > 0 {
		query = query.Where("year = ?", filter.Year)
	}
	if filter.Month > 0 {
		query = query.Where("month = ?", filter.Month)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.PropertyID > 0 {
		query = query.Where("property_id = ?", filter.PropertyID)
	}
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var fees []models.Fee
	if err := query.Order("year DESC, month DESC, property_id ASC").Find(&fees).Error; err != nil {
		return nil, Internal("failed to list fees", err)
	}
	return fees, nil
}

// Create inserts a single fee manually. The amount always comes from the
// schedule, never from the caller.
func (s *FeeService) Create(propertyID, scheduleID uint, year, month int, notes string) (*models.Fee, error) {
	if month < 1 || month > 12 {
		return nil, Validation("month %d is out of range 1-12", month)
	}

	var schedule models.FeeSchedule
	if err := s.db.First(&schedule, scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("fee schedule %d not found", scheduleID)
		}
		return nil, Internal("failed to load fee schedule", err)
	}

	var property models.Property
	if err := s.db.First(&property, propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("property %d not found", propertyID)
		}
		return nil, Internal("failed to load property", err)
	}

	var count int64
	err := s.db.Model(&models.Fee{}).
		Where("property_id = ? AND fee_schedule_id = ? AND year = ? AND month = ?",
			propertyID, scheduleID, year, month).
		Count(&count).Error
	if err != nil {
		return nil, Internal("failed to check for existing fee", err)
	}
	if count > 0 {
		return nil, Validation("a fee already exists for this property and period")
	}

	now := time.Now()
	generatedDate := now
	if year != now.Year() || month != int(now.Month()) {
		generatedDate = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	}

	fee := &models.Fee{
		PropertyID:    propertyID,
		FeeScheduleID: scheduleID,
		UserID:        property.OwnerID,
		Amount:        schedule.Amount,
		GeneratedDate: generatedDate,
		Year:          year,
		Month:         month,
		DueDate:       clampedDueDate(year, month, schedule.DueDay),
		Status:        models.FeeStatusPending,
		Reference:     fmt.Sprintf("Manual-%d-%02d", year, month),
		Notes:         notes,
	}

	if err := s.db.Create(fee).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, Validation("a fee already exists for this property and period")
		}
		return nil, Internal("failed to create fee", err)
	}

	return fee, nil
}

// Update applies a partial update. Fees locked into an agreement reject any
// edit; the lock is released only by deleting the agreement.
func (s *FeeService) Update(id uint, dto UpdateFeeDTO) (*models.Fee, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	fee, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if fee.Locked() {
		return nil, Invariant("fee %d is part of an agreement and cannot be modified", id)
	}

	if dto.Status != nil {
		if *dto.Status == models.FeeStatusAgreement {
			return nil, Invariant("agreement status is set only through agreement creation")
		}
		fee.Status = *dto.Status
	}
	if dto.DueDate != nil {
		fee.DueDate = *dto.DueDate
	}
	if dto.Notes != nil {
		fee.Notes = *dto.Notes
	}
	fee.UpdatedAt = time.Now()

	if err := s.db.Save(fee).Error; err != nil {
		return nil, Internal("failed to update fee", err)
	}
	return fee, nil
}

// Delete removes a fee that is not locked into an agreement
func (s *FeeService) Delete(id uint) error {
	fee, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if fee.Locked() {
		return Invariant("fee %d is part of an agreement and cannot be deleted", id)
	}

	if err := s.db.Delete(&models.Fee{}, id).Error; err != nil {
		return Internal("failed to delete fee", err)
	}

	utils.LogInfo("Fee %d deleted", id)
	return nil
}

// ApplyPayment accumulates an approved payment amount on the fee inside the
// given transaction. PaidAmount never exceeds Amount; the status moves to
// COMPLETED when the fee is fully settled, PARTIALLY_PAID otherwise.
func (s *FeeService) ApplyPayment(tx *gorm.DB, fee *models.Fee, amount float64) error {
	if tx == nil {
		tx = s.db
	}

	fee.PaidAmount = utils.Round2(fee.PaidAmount + amount)
	if fee.PaidAmount > fee.Amount {
		fee.PaidAmount = fee.Amount
	}

	if fee.PaidAmount >= fee.Amount || utils.AmountsEqual(fee.PaidAmount, fee.Amount) {
		fee.Status = models.FeeStatusCompleted
	} else {
		fee.Status = models.FeeStatusPartiallyPaid
	}
	fee.UpdatedAt = time.Now()

	if err := tx.Save(fee).Error; err != nil {
		return Internal("failed to apply payment to fee", err)
	}
	return nil
}
