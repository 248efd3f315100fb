package services

import (
	"strings"
	"testing"

	"pagovecinal/models"
)

func TestMiscellaneousApproveIssuesOTRReceipt(t *testing.T) {
	db := newTestDB(t)
	misc := NewMiscellaneousPaymentService(db, newTestReceiptService(db))

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)

	payment, err := misc.Create(CreateMiscellaneousPaymentDTO{
		PropertyID:  &property.ID,
		PaymentType: models.MiscTypeMaintenance,
		Amount:      80,
		Description: "Reparación portón principal",
		UserID:      owner.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("new payment status: got %v want %v", payment.Status, models.PaymentStatusPending)
	}
	if payment.PropertyDetails == nil || payment.PropertyDetails.Villa != property.Villa {
		t.Errorf("property snapshot at creation missing or wrong: %+v", payment.PropertyDetails)
	}

	result, err := misc.Approve(payment.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if result.ReceiptErr != nil {
		t.Fatalf("receipt issuance failed: %v", result.ReceiptErr)
	}
	if result.Payment.Status != models.PaymentStatusApproved {
		t.Errorf("payment status: got %v want %v", result.Payment.Status, models.PaymentStatusApproved)
	}

	receipt := result.Receipt
	if receipt == nil {
		t.Fatal("no receipt issued")
	}
	if !strings.HasPrefix(receipt.CorrelativeNumber, "OTR-") {
		t.Errorf("receipt number: got %v want OTR prefix", receipt.CorrelativeNumber)
	}
	if receipt.FeePeriod != "Pago varios: Reparación portón principal" {
		t.Errorf("receipt period: got %q", receipt.FeePeriod)
	}
	if receipt.Notes != "Recibo generado automáticamente al aprobar el pago varios" {
		t.Errorf("receipt notes: got %q", receipt.Notes)
	}
}

func TestMiscellaneousReceiptUsesCreationSnapshots(t *testing.T) {
	db := newTestDB(t)
	misc := NewMiscellaneousPaymentService(db, newTestReceiptService(db))

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)

	payment, err := misc.Create(CreateMiscellaneousPaymentDTO{
		PropertyID:  &property.ID,
		PaymentType: models.MiscTypeMaintenance,
		Amount:      120,
		Description: "Cambio de cerradura",
		UserID:      owner.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := db.Model(property).Update("owner_name", "Dueño Cambiado").Error; err != nil {
		t.Fatalf("failed to update property: %v", err)
	}
	if err := db.Model(owner).Update("full_name", "Dueño Cambiado").Error; err != nil {
		t.Fatalf("failed to update owner: %v", err)
	}

	result, err := misc.Approve(payment.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if result.ReceiptErr != nil {
		t.Fatalf("receipt issuance failed: %v", result.ReceiptErr)
	}

	receipt := result.Receipt
	if receipt.PropertyDetails == nil || receipt.PropertyDetails.OwnerName != "Juan Pérez" {
		t.Errorf("receipt owner name: got %+v want creation-time value \"Juan Pérez\"", receipt.PropertyDetails)
	}
	if receipt.OwnerDetails == nil || receipt.OwnerDetails.Name != "Propietario de Prueba" {
		t.Errorf("receipt owner details: got %+v want creation-time value \"Propietario de Prueba\"", receipt.OwnerDetails)
	}
}

func TestMiscellaneousApproveTwiceFails(t *testing.T) {
	db := newTestDB(t)
	misc := NewMiscellaneousPaymentService(db, newTestReceiptService(db))

	owner := createTestOwner(t, db)
	payment, err := misc.Create(CreateMiscellaneousPaymentDTO{
		PaymentType: models.MiscTypeOther,
		Amount:      50,
		Description: "Pago sin propiedad",
		UserID:      owner.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := misc.Approve(payment.ID); err != nil {
		t.Fatalf("first Approve returned error: %v", err)
	}
	if _, err := misc.Approve(payment.ID); KindOf(err) != KindValidation {
		t.Errorf("second approval: got %v want validation error", err)
	}
}

func TestMiscellaneousUpdateAndDeleteRequirePending(t *testing.T) {
	db := newTestDB(t)
	misc := NewMiscellaneousPaymentService(db, newTestReceiptService(db))

	owner := createTestOwner(t, db)
	payment, err := misc.Create(CreateMiscellaneousPaymentDTO{
		PaymentType: models.MiscTypeServices,
		Amount:      50,
		Description: "Servicio de jardinería",
		UserID:      owner.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	amount := 75.0
	updated, err := misc.Update(payment.ID, &amount, nil, nil)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Amount != 75 {
		t.Errorf("updated amount: got %v want 75", updated.Amount)
	}

	if _, err := misc.Approve(payment.ID); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	if _, err := misc.Update(payment.ID, &amount, nil, nil); KindOf(err) != KindValidation {
		t.Errorf("updating approved payment: got %v want validation error", err)
	}
	if err := misc.Delete(payment.ID); KindOf(err) != KindInvariant {
		t.Errorf("deleting approved payment: got %v want invariant error", err)
	}
}

func TestExpenseApproveIssuesReceiptWithoutSnapshots(t *testing.T) {
	db := newTestDB(t)
	expenses := NewExpenseService(db, newTestReceiptService(db))

	admin := createTestAdmin(t, db)
	expense, err := expenses.Create(CreateExpenseDTO{
		ExpenseType: models.ExpenseTypeCleaning,
		Amount:      500,
		Description: "Limpieza de áreas comunes",
		Beneficiary: "Servicios Limpios SA",
		UserID:      admin.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	result, err := expenses.Approve(expense.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if result.ReceiptErr != nil {
		t.Fatalf("receipt issuance failed: %v", result.ReceiptErr)
	}

	receipt := result.Receipt
	if receipt == nil {
		t.Fatal("no receipt issued")
	}
	if !strings.HasPrefix(receipt.CorrelativeNumber, "OTR-") {
		t.Errorf("receipt number: got %v want OTR prefix", receipt.CorrelativeNumber)
	}
	if receipt.FeePeriod != "Gasto administrativo: Limpieza de áreas comunes" {
		t.Errorf("receipt period: got %q", receipt.FeePeriod)
	}
	if receipt.Notes != "Beneficiario: Servicios Limpios SA" {
		t.Errorf("receipt notes: got %q", receipt.Notes)
	}
	if receipt.PropertyDetails != nil || receipt.OwnerDetails != nil {
		t.Error("expense receipt should carry no snapshots")
	}
}

func TestExpenseDeleteApprovedFails(t *testing.T) {
	db := newTestDB(t)
	expenses := NewExpenseService(db, newTestReceiptService(db))

	admin := createTestAdmin(t, db)
	expense, err := expenses.Create(CreateExpenseDTO{
		ExpenseType: models.ExpenseTypeOther,
		Amount:      100,
		Description: "Compra de materiales",
		Beneficiary: "Ferretería Central",
		UserID:      admin.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := expenses.Approve(expense.ID); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if err := expenses.Delete(expense.ID); KindOf(err) != KindInvariant {
		t.Errorf("deleting approved expense: got %v want invariant error", err)
	}
}

// OTR numbering is shared between miscellaneous payments and expenses
func TestMiscAndExpenseShareOTRSequence(t *testing.T) {
	db := newTestDB(t)
	receipts := newTestReceiptService(db)
	misc := NewMiscellaneousPaymentService(db, receipts)
	expenses := NewExpenseService(db, receipts)

	owner := createTestOwner(t, db)
	admin := createTestAdmin(t, db)

	payment, err := misc.Create(CreateMiscellaneousPaymentDTO{
		PaymentType: models.MiscTypeOther,
		Amount:      50,
		Description: "Pago de prueba",
		UserID:      owner.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	first, err := misc.Approve(payment.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	expense, err := expenses.Create(CreateExpenseDTO{
		ExpenseType: models.ExpenseTypeSupplies,
		Amount:      30,
		Description: "Papelería de oficina",
		Beneficiary: "Librería Norte",
		UserID:      admin.ID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	second, err := expenses.Approve(expense.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	correlatives := NewCorrelativeService(db)
	current, err := correlatives.Current(PrefixMiscellaneous, first.Receipt.IssueDate.Year())
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if current != 2 {
		t.Errorf("shared OTR counter: got %v want 2", current)
	}
	if first.Receipt.CorrelativeNumber == second.Receipt.CorrelativeNumber {
		t.Errorf("duplicate OTR number %v", first.Receipt.CorrelativeNumber)
	}
}
