package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pagovecinal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

// newTestDB opens a fresh in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// SQLite allows a single writer; one connection keeps concurrent
	// tests from hitting lock errors
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.FeeSchedule{},
		&models.Fee{},
		&models.Payment{},
		&models.Agreement{},
		&models.AgreementInstallment{},
		&models.MiscellaneousPayment{},
		&models.Expense{},
		&models.Receipt{},
		&models.CorrelativeCounter{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// createTestAdmin inserts an admin account
func createTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		Email:        fmt.Sprintf("admin%d@test.local", atomic.AddInt64(&testDBCounter, 1)),
		PasswordHash: "x",
		Role:         models.UserRoleAdmin,
		FullName:     "Admin de Prueba",
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}
	return user
}

// createTestOwner inserts an owner account
func createTestOwner(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		Email:        fmt.Sprintf("owner%d@test.local", atomic.AddInt64(&testDBCounter, 1)),
		PasswordHash: "x",
		Role:         models.UserRoleOwner,
		FullName:     "Propietario de Prueba",
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}
	return user
}

// createTestProperty inserts a property, optionally linked to an owner
func createTestProperty(t *testing.T, db *gorm.DB, ownerID *uint) *models.Property {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	property := &models.Property{
		Villa:      "Villa Central",
		RowLetter:  "A",
		Number:     int(n),
		OwnerName:  "Juan Pérez",
		OwnerPhone: "555-0100",
		OwnerID:    ownerID,
	}
	if err := db.Create(property).Error; err != nil {
		t.Fatalf("failed to create property: %v", err)
	}
	return property
}

// createTestSchedule inserts an active fee schedule
func createTestSchedule(t *testing.T, db *gorm.DB, amount float64, dueDay int) *models.FeeSchedule {
	t.Helper()

	schedule := &models.FeeSchedule{
		Amount:        amount,
		Description:   "Cuota de mantenimiento",
		EffectiveDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
		DueDay:        dueDay,
	}
	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("failed to create fee schedule: %v", err)
	}
	return schedule
}

// generateTestFee runs a manual generation for one period and returns the fee
func generateTestFee(t *testing.T, db *gorm.DB, property *models.Property, schedule *models.FeeSchedule, year, month int) *models.Fee {
	t.Helper()

	fees := NewFeeService(db)
	if _, err := fees.Generate(GenerateFeesDTO{
		Mode:        GenerationModeManual,
		Year:        year,
		Months:      []int{month},
		ScheduleIDs: []uint{schedule.ID},
	}); err != nil {
		t.Fatalf("failed to generate fee: %v", err)
	}

	var fee models.Fee
	err := db.Where("property_id = ? AND fee_schedule_id = ? AND year = ? AND month = ?",
		property.ID, schedule.ID, year, month).First(&fee).Error
	if err != nil {
		t.Fatalf("generated fee not found: %v", err)
	}
	return &fee
}

// newTestReceiptService builds a receipt service with a fixed signing key
func newTestReceiptService(db *gorm.DB) *ReceiptService {
	return NewReceiptService(db, NewCorrelativeService(db), []byte("test-hmac-key"))
}
