package services

import (
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"gorm.io/gorm"
)

// SchedulerService runs unattended maintenance: automatic fee generation on
// each schedule's due day and overdue marking of installment plans
type SchedulerService struct {
	db   *gorm.DB
	fees *FeeService
	stop chan struct{}
}

// NewSchedulerService creates a new SchedulerService
func NewSchedulerService(db *gorm.DB, fees *FeeService) *SchedulerService {
	return &SchedulerService{
		db:   db,
		fees: fees,
		stop: make(chan struct{}),
	}
}

// Start launches the background tickers
func (s *SchedulerService) Start() {
	// Automatic generation only creates fees for schedules whose due day
	// is today, so a daily pass is enough
	generationTicker := time.NewTicker(24 * time.Hour)
	go func() {
		defer generationTicker.Stop()
		for {
			select {
			case <-generationTicker.C:
				if err := s.runAutomaticGeneration(); err != nil {
					utils.LogError("Automatic fee generation failed: %v", err)
				}
			case <-s.stop:
				return
			}
		}
	}()

	overdueTicker := time.NewTicker(6 * time.Hour)
	go func() {
		defer overdueTicker.Stop()
		for {
			select {
			case <-overdueTicker.C:
				if err := s.markOverdueInstallments(); err != nil {
					utils.LogError("Overdue installment pass failed: %v", err)
				}
			case <-s.stop:
				return
			}
		}
	}()

	utils.LogInfo("Scheduler started")
}

// Stop terminates the background tickers
func (s *SchedulerService) Stop() {
	close(s.stop)
}

// runAutomaticGeneration creates this month's fees for schedules due today
func (s *SchedulerService) runAutomaticGeneration() error {
	created, err := s.fees.Generate(GenerateFeesDTO{Mode: GenerationModeAutomatic})
	if err != nil {
		return err
	}
	if created > 0 {
		utils.LogInfo("Scheduler generated %d fees", created)
	}
	return nil
}

// markOverdueInstallments flags pending installments whose due date passed
func (s *SchedulerService) markOverdueInstallments() error {
	result := s.db.Model(&models.AgreementInstallment{}).
		Where("status = ? AND due_date < ?", models.InstallmentStatusPending, time.Now()).
		Updates(map[string]interface{}{
			"status":     models.InstallmentStatusOverdue,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		utils.LogInfo("Marked %d installments overdue", result.RowsAffected)
	}
	return nil
}
