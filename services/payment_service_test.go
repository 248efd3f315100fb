package services

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"pagovecinal/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func newTestPaymentService(db *gorm.DB) *PaymentService {
	fees := NewFeeService(db)
	receipts := newTestReceiptService(db)
	return NewPaymentService(db, fees, receipts, nil)
}

func TestCreatePaymentRejectsLockedFee(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	if err := db.Model(fee).Update("status", models.FeeStatusAgreement).Error; err != nil {
		t.Fatalf("failed to lock fee: %v", err)
	}

	_, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID})
	if KindOf(err) != KindInvariant {
		t.Errorf("payment against locked fee: got %v want invariant error", err)
	}
}

func TestCreatePaymentRejectsCompletedFee(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	if err := db.Model(fee).Update("status", models.FeeStatusCompleted).Error; err != nil {
		t.Fatalf("failed to complete fee: %v", err)
	}

	_, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID})
	if KindOf(err) != KindValidation {
		t.Errorf("payment against completed fee: got %v want validation error", err)
	}
}

func TestApprovePaymentSettlesFeeAndIssuesReceipt(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	payment, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("new payment status: got %v want %v", payment.Status, models.PaymentStatusPending)
	}

	// The fee is untouched while the payment is pending
	var pending models.Fee
	db.First(&pending, fee.ID)
	if pending.Status != models.FeeStatusPending || pending.PaidAmount != 0 {
		t.Errorf("fee changed before approval: status %v paid %v", pending.Status, pending.PaidAmount)
	}

	result, err := payments.Approve(payment.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if result.ReceiptErr != nil {
		t.Fatalf("receipt issuance failed: %v", result.ReceiptErr)
	}
	if result.Payment.Status != models.PaymentStatusApproved {
		t.Errorf("payment status: got %v want %v", result.Payment.Status, models.PaymentStatusApproved)
	}

	var settled models.Fee
	db.First(&settled, fee.ID)
	if settled.Status != models.FeeStatusCompleted {
		t.Errorf("fee status after approval: got %v want %v", settled.Status, models.FeeStatusCompleted)
	}
	if settled.PaidAmount != 150 {
		t.Errorf("fee paid amount: got %v want 150", settled.PaidAmount)
	}

	receipt := result.Receipt
	if receipt == nil {
		t.Fatal("no receipt issued")
	}
	if receipt.CorrelativeNumber != "REC-2025-00001" && !strings.HasPrefix(receipt.CorrelativeNumber, "REC-") {
		t.Errorf("receipt number: got %v want REC prefix", receipt.CorrelativeNumber)
	}
	if receipt.SourceKind != models.ReceiptSourcePayment {
		t.Errorf("receipt source kind: got %v want %v", receipt.SourceKind, models.ReceiptSourcePayment)
	}
	if !strings.Contains(receipt.FeePeriod, fee.Reference) {
		t.Errorf("receipt fee period %q does not mention fee reference %q", receipt.FeePeriod, fee.Reference)
	}
	if receipt.PropertyDetails == nil || receipt.PropertyDetails.Villa != property.Villa {
		t.Errorf("receipt property snapshot missing or wrong: %+v", receipt.PropertyDetails)
	}
	if receipt.Signature == "" {
		t.Error("receipt has no signature")
	}
}

func TestApprovePaymentTwiceFails(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	payment, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := payments.Approve(payment.ID); err != nil {
		t.Fatalf("first Approve returned error: %v", err)
	}

	_, err = payments.Approve(payment.ID)
	if KindOf(err) != KindValidation {
		t.Errorf("second approval: got %v want validation error", err)
	}
}

func TestRegenerateReceiptRejectsDuplicate(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	payment, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := payments.Approve(payment.ID); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	_, err = payments.RegenerateReceipt(payment.ID)
	if KindOf(err) != KindInvariant {
		t.Errorf("regenerating an existing receipt: got %v want invariant error", err)
	}
}

func TestRejectPaymentLeavesFeeUntouched(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	payment, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	rejected, err := payments.Reject(payment.ID, "comprobante ilegible")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if rejected.Status != models.PaymentStatusRejected {
		t.Errorf("payment status: got %v want %v", rejected.Status, models.PaymentStatusRejected)
	}
	if rejected.Notes != "comprobante ilegible" {
		t.Errorf("rejection notes: got %q", rejected.Notes)
	}

	var unchanged models.Fee
	db.First(&unchanged, fee.ID)
	if unchanged.Status != models.FeeStatusPending || unchanged.PaidAmount != 0 {
		t.Errorf("fee changed by rejection: status %v paid %v", unchanged.Status, unchanged.PaidAmount)
	}

	var receipts int64
	db.Model(&models.Receipt{}).Count(&receipts)
	if receipts != 0 {
		t.Errorf("rejection issued a receipt: count %v", receipts)
	}
}

func TestBulkApproveIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	owner := createTestOwner(t, db)
	schedule := createTestSchedule(t, db, 150.00, 15)

	var ids []uint
	for i := 0; i < 2; i++ {
		property := createTestProperty(t, db, &owner.ID)
		fee := generateTestFee(t, db, property, schedule, 2025, 3)
		payment, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		ids = append(ids, payment.ID)
	}
	ids = append(ids, 999) // does not exist

	result := payments.BulkApprove(ids)
	if len(result.Approved) != 2 {
		t.Errorf("approved count: got %v want 2", len(result.Approved))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("error count: got %v want 1", len(result.Errors))
	}
	if result.Errors[0].ID != 999 {
		t.Errorf("failed id: got %v want 999", result.Errors[0].ID)
	}
}

// buildImportSheet renders rows in the bulk-import column layout
func buildImportSheet(t *testing.T, rows [][]interface{}) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(importColumns))
	for i, col := range importColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to render spreadsheet: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestBulkImportCreatesApprovedPayments(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	admin := createTestAdmin(t, db)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	sheet := buildImportSheet(t, [][]interface{}{
		{property.Villa, property.RowLetter, property.Number, 2025, 3, 150.00, "2025-03-20", "importado"},
	})

	result, err := payments.BulkImport(sheet, admin.ID)
	if err != nil {
		t.Fatalf("BulkImport returned error: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("created count: got %v want 1, errors: %v", result.Created, result.Errors)
	}

	var payment models.Payment
	if err := db.Where("fee_id = ?", fee.ID).First(&payment).Error; err != nil {
		t.Fatalf("imported payment not found: %v", err)
	}
	if payment.Status != models.PaymentStatusApproved {
		t.Errorf("imported payment status: got %v want %v", payment.Status, models.PaymentStatusApproved)
	}
	if payment.UserID != admin.ID {
		t.Errorf("imported payment user: got %v want %v", payment.UserID, admin.ID)
	}

	var settled models.Fee
	db.First(&settled, fee.ID)
	if settled.Status != models.FeeStatusCompleted {
		t.Errorf("fee status after import: got %v want %v", settled.Status, models.FeeStatusCompleted)
	}
}

func TestBulkImportRejectsDuplicateAndBadRows(t *testing.T) {
	db := newTestDB(t)
	payments := newTestPaymentService(db)

	admin := createTestAdmin(t, db)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, &owner.ID)
	schedule := createTestSchedule(t, db, 150.00, 15)
	fee := generateTestFee(t, db, property, schedule, 2025, 3)

	if _, err := payments.Create(CreatePaymentDTO{FeeID: fee.ID, Amount: 150, UserID: owner.ID}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	sheet := buildImportSheet(t, [][]interface{}{
		{property.Villa, property.RowLetter, property.Number, 2025, 3, 150.00, "2025-03-20", ""},
		{"Villa Inexistente", "Z", 999, 2025, 3, 150.00, "2025-03-20", ""},
		{property.Villa, property.RowLetter, property.Number, 2025, 3, "no-es-monto", "2025-03-20", ""},
	})

	result, err := payments.BulkImport(sheet, admin.ID)
	if err != nil {
		t.Fatalf("BulkImport returned error: %v", err)
	}
	if result.Created != 0 {
		t.Errorf("created count: got %v want 0", result.Created)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("error count: got %v want 3: %v", len(result.Errors), result.Errors)
	}
	if result.Errors[0].Error != "Payment already exists for this fee" {
		t.Errorf("duplicate row error: got %q want %q", result.Errors[0].Error, "Payment already exists for this fee")
	}
	if result.Errors[0].Row != 2 {
		t.Errorf("duplicate row number: got %v want 2", result.Errors[0].Row)
	}
}

func TestParseImportDateLayouts(t *testing.T) {
	for _, value := range []string{"2025-03-20", "20/03/2025", "2/3/2025", "20-03-2025"} {
		if _, err := parseImportDate(value); err != nil {
			t.Errorf("parseImportDate(%q) returned error: %v", value, err)
		}
	}
	if _, err := parseImportDate("marzo 20"); err == nil {
		t.Error("parseImportDate accepted an invalid date")
	}
}
