package services

import (
	"testing"
	"time"

	"pagovecinal/models"
)

func TestCreateFeeScheduleValidatesDates(t *testing.T) {
	db := newTestDB(t)
	schedules := NewFeeScheduleService(db)

	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	before := effective.AddDate(0, -1, 0)

	_, err := schedules.Create(CreateFeeScheduleDTO{
		Amount:        150,
		Description:   "Cuota de mantenimiento",
		EffectiveDate: effective,
		EndDate:       &before,
		DueDay:        15,
	})
	if KindOf(err) != KindValidation {
		t.Errorf("end date before effective date: got %v want validation error", err)
	}

	_, err = schedules.Create(CreateFeeScheduleDTO{
		Amount:        150,
		Description:   "Cuota de mantenimiento",
		EffectiveDate: effective,
		DueDay:        32,
	})
	if KindOf(err) != KindValidation {
		t.Errorf("due day 32: got %v want validation error", err)
	}
}

func TestScheduleAmountChangeDoesNotTouchGeneratedFees(t *testing.T) {
	db := newTestDB(t)
	schedules := NewFeeScheduleService(db)

	property := createTestProperty(t, db, nil)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	amount := 200.0
	if _, err := schedules.Update(schedule.ID, UpdateFeeScheduleDTO{Amount: &amount}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	var reloaded models.Fee
	db.First(&reloaded, fee.ID)
	if reloaded.Amount != 150 {
		t.Errorf("generated fee amount changed: got %v want 150", reloaded.Amount)
	}

	// New generations use the new amount
	fees := NewFeeService(db)
	if _, err := fees.Generate(GenerateFeesDTO{
		Mode:   GenerationModeManual,
		Year:   2025,
		Months: []int{4},
	}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	var next models.Fee
	db.Where("month = ?", 4).First(&next)
	if next.Amount != 200 {
		t.Errorf("newly generated fee amount: got %v want 200", next.Amount)
	}
}

func TestDeleteScheduleWithFeesDeactivates(t *testing.T) {
	db := newTestDB(t)
	schedules := NewFeeScheduleService(db)

	property := createTestProperty(t, db, nil)
	schedule := createTestSchedule(t, db, 150.00, 15)
	generateTestFee(t, db, property, schedule, 2025, 3)

	if err := schedules.Delete(schedule.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	reloaded, err := schedules.GetByID(schedule.ID)
	if err != nil {
		t.Fatalf("schedule was removed instead of deactivated: %v", err)
	}
	if reloaded.IsActive {
		t.Error("schedule with fees should be deactivated on delete")
	}
}

func TestDeleteScheduleWithoutFeesRemoves(t *testing.T) {
	db := newTestDB(t)
	schedules := NewFeeScheduleService(db)

	schedule := createTestSchedule(t, db, 150.00, 15)
	if err := schedules.Delete(schedule.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := schedules.GetByID(schedule.ID); KindOf(err) != KindNotFound {
		t.Errorf("schedule without fees should be removed: got %v", err)
	}
}
