package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"gorm.io/gorm"
)

func newTestAgreementService(db *gorm.DB) *AgreementService {
	correlatives := NewCorrelativeService(db)
	receipts := NewReceiptService(db, correlatives, []byte("test-hmac-key"))
	return NewAgreementService(db, correlatives, receipts, nil, nil)
}

// setupAgreementFixture creates an owner, a property and two pending fees
// totaling 300.00
func setupAgreementFixture(t *testing.T, db *gorm.DB) (*models.User, *models.Property, []uint) {
	t.Helper()

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)

	f1 := generateTestFee(t, db, property, schedule, 2025, 1)
	f2 := generateTestFee(t, db, property, schedule, 2025, 2)

	return owner, property, []uint{f1.ID, f2.ID}
}

func TestCreateAgreementLocksFeesAndSchedulesInstallments(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	result, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 3,
		StartDate:         start,
		UserID:            owner.ID,
	}, admin)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	agreement := result.Agreement
	if agreement.TotalDebt != 300 {
		t.Errorf("total debt: got %v want 300", agreement.TotalDebt)
	}
	if agreement.Status != models.AgreementStatusActive {
		t.Errorf("status: got %v want %v", agreement.Status, models.AgreementStatusActive)
	}
	if !strings.HasPrefix(agreement.AgreementNumber, "AGR-") {
		t.Errorf("agreement number: got %v want AGR prefix", agreement.AgreementNumber)
	}
	if want := start.AddDate(0, 0, 90); !agreement.EndDate.Equal(want) {
		t.Errorf("end date: got %v want %v", agreement.EndDate, want)
	}

	// Covered fees are locked and point back at the agreement
	var fees []models.Fee
	if err := db.Where("id IN ?", feeIDs).Find(&fees).Error; err != nil {
		t.Fatalf("failed to reload fees: %v", err)
	}
	for _, fee := range fees {
		if fee.Status != models.FeeStatusAgreement {
			t.Errorf("fee %d status: got %v want %v", fee.ID, fee.Status, models.FeeStatusAgreement)
		}
		if fee.AgreementID == nil || *fee.AgreementID != agreement.ID {
			t.Errorf("fee %d agreement link: got %v want %v", fee.ID, fee.AgreementID, agreement.ID)
		}
	}

	// The first installment is due on the start date, the rest 30 days apart
	if len(agreement.Installments) != 3 {
		t.Fatalf("installment count: got %v want 3", len(agreement.Installments))
	}
	for i, installment := range agreement.Installments {
		if installment.InstallmentNumber != i+1 {
			t.Errorf("installment %d number: got %v", i, installment.InstallmentNumber)
		}
		if installment.Amount != 100 {
			t.Errorf("installment %d amount: got %v want 100", i, installment.Amount)
		}
		want := start.AddDate(0, 0, 30*i)
		if !installment.DueDate.Equal(want) {
			t.Errorf("installment %d due date: got %v want %v", i, installment.DueDate, want)
		}
		if installment.Status != models.InstallmentStatusPending {
			t.Errorf("installment %d status: got %v", i, installment.Status)
		}
	}
}

func TestCreateAgreementRejectsNonPendingFees(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	if err := db.Model(&models.Fee{}).Where("id = ?", feeIDs[0]).
		Update("status", models.FeeStatusCompleted).Error; err != nil {
		t.Fatalf("failed to complete fee: %v", err)
	}

	_, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 3,
		StartDate:         time.Now(),
		UserID:            owner.ID,
	}, admin)
	if KindOf(err) != KindValidation {
		t.Errorf("completed fee in agreement: got %v want validation error", err)
	}

	// Nothing was partially committed
	var count int64
	db.Model(&models.Agreement{}).Count(&count)
	if count != 0 {
		t.Errorf("agreement count after failed create: got %v want 0", count)
	}
}

func TestCreateAgreementRejectsForeignFee(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	other := createTestProperty(t, db, nil)
	schedule := createTestSchedule(t, db, 80.00, 10)
	foreign := generateTestFee(t, db, other, schedule, 2025, 1)

	_, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            append(feeIDs, foreign.ID),
		MonthlyAmount:     100,
		InstallmentsCount: 3,
		StartDate:         time.Now(),
		UserID:            owner.ID,
	}, admin)
	if KindOf(err) != KindValidation {
		t.Errorf("fee from another property: got %v want validation error", err)
	}
}

func TestCreateAgreementDeniedForOtherOwner(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	_, property, feeIDs := setupAgreementFixture(t, db)
	stranger := createTestOwner(t, db)

	_, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 3,
		StartDate:         time.Now(),
		UserID:            stranger.ID,
	}, stranger)
	if KindOf(err) != KindPermissionDenied {
		t.Errorf("stranger creating agreement: got %v want permission error", err)
	}
}

func TestPayInstallmentsToCompletion(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	result, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 3,
		StartDate:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		UserID:            owner.ID,
	}, admin)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	agreement := result.Agreement

	for i := 1; i <= 3; i++ {
		payResult, err := agreements.PayNextInstallment(PayInstallmentDTO{
			Amount:    100,
			Reference: fmt.Sprintf("TRX-%d", i),
		}, owner)
		if err != nil {
			t.Fatalf("installment %d payment returned error: %v", i, err)
		}
		if payResult.Installment.InstallmentNumber != i {
			t.Errorf("paid installment number: got %v want %v", payResult.Installment.InstallmentNumber, i)
		}
		if payResult.Installment.Status != models.InstallmentStatusPaid {
			t.Errorf("installment status: got %v want %v", payResult.Installment.Status, models.InstallmentStatusPaid)
		}
		if payResult.Receipt == nil {
			t.Fatalf("installment %d produced no receipt", i)
		}
		if !strings.HasPrefix(payResult.Receipt.CorrelativeNumber, "CONV-") {
			t.Errorf("installment receipt number: got %v want CONV prefix", payResult.Receipt.CorrelativeNumber)
		}
		wantPeriod := fmt.Sprintf("Convenio %s - Cuota %d", agreement.AgreementNumber, i)
		if payResult.Receipt.FeePeriod != wantPeriod {
			t.Errorf("receipt period: got %q want %q", payResult.Receipt.FeePeriod, wantPeriod)
		}
		if completed := i == 3; payResult.Completed != completed {
			t.Errorf("completed after installment %d: got %v want %v", i, payResult.Completed, completed)
		}
	}

	var final models.Agreement
	db.First(&final, agreement.ID)
	if final.Status != models.AgreementStatusCompleted {
		t.Errorf("agreement status after last installment: got %v want %v", final.Status, models.AgreementStatusCompleted)
	}

	var receipts int64
	db.Model(&models.Receipt{}).Where("correlative_number LIKE ?", "CONV-%").Count(&receipts)
	if receipts != 3 {
		t.Errorf("CONV receipt count: got %v want 3", receipts)
	}

	// Each receipt is backed by its own settlement record
	var settlements int64
	db.Model(&models.MiscellaneousPayment{}).
		Where("description LIKE ?", "Convenio %").Count(&settlements)
	if settlements != 3 {
		t.Errorf("settlement record count: got %v want 3", settlements)
	}
}

func TestPayInstallmentAmountMustMatch(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	if _, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 3,
		StartDate:         time.Now(),
		UserID:            owner.ID,
	}, admin); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, err := agreements.PayNextInstallment(PayInstallmentDTO{Amount: 99}, owner)
	if KindOf(err) != KindInvariant {
		t.Errorf("wrong amount: got %v want invariant error", err)
	}

	// A sub-cent difference is within tolerance
	if _, err := agreements.PayNextInstallment(PayInstallmentDTO{Amount: 100 + utils.AmountTolerance/2}, owner); err != nil {
		t.Errorf("amount within tolerance rejected: %v", err)
	}
}

func TestPayInstallmentAcceptsOverdue(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	if _, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 2,
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UserID:            owner.ID,
	}, admin); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := db.Model(&models.AgreementInstallment{}).
		Where("installment_number = ?", 1).
		Update("status", models.InstallmentStatusOverdue).Error; err != nil {
		t.Fatalf("failed to mark installment overdue: %v", err)
	}

	result, err := agreements.PayNextInstallment(PayInstallmentDTO{Amount: 100}, owner)
	if err != nil {
		t.Fatalf("paying overdue installment returned error: %v", err)
	}
	if result.Installment.InstallmentNumber != 1 {
		t.Errorf("paid installment: got %v want the overdue one", result.Installment.InstallmentNumber)
	}
}

func TestPayInstallmentScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	if _, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 2,
		StartDate:         time.Now(),
		UserID:            owner.ID,
	}, admin); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	stranger := createTestOwner(t, db)
	_, err := agreements.PayNextInstallment(PayInstallmentDTO{Amount: 100}, stranger)
	if KindOf(err) != KindNotFound {
		t.Errorf("stranger paying installment: got %v want not-found error", err)
	}
}

func TestDeleteAgreementReleasesFees(t *testing.T) {
	db := newTestDB(t)
	agreements := newTestAgreementService(db)

	admin := createTestAdmin(t, db)
	owner, property, feeIDs := setupAgreementFixture(t, db)

	result, err := agreements.Create(CreateAgreementDTO{
		PropertyID:        property.ID,
		FeeIDs:            feeIDs,
		MonthlyAmount:     100,
		InstallmentsCount: 3,
		StartDate:         time.Now(),
		UserID:            owner.ID,
	}, admin)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	id := result.Agreement.ID

	if err := agreements.Delete(id, owner); KindOf(err) != KindPermissionDenied {
		t.Errorf("owner deleting agreement: got %v want permission error", err)
	}

	if err := agreements.Delete(id, admin); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	var fees []models.Fee
	if err := db.Where("id IN ?", feeIDs).Find(&fees).Error; err != nil {
		t.Fatalf("failed to reload fees: %v", err)
	}
	for _, fee := range fees {
		if fee.Status != models.FeeStatusPending {
			t.Errorf("released fee %d status: got %v want %v", fee.ID, fee.Status, models.FeeStatusPending)
		}
		if fee.AgreementID != nil {
			t.Errorf("released fee %d still linked to agreement %v", fee.ID, *fee.AgreementID)
		}
	}

	var orphans int64
	db.Model(&models.AgreementInstallment{}).Where("agreement_id = ?", id).Count(&orphans)
	if orphans != 0 {
		t.Errorf("orphan installments after deletion: got %v want 0", orphans)
	}
}
