package services

import (
	"errors"
	"fmt"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/beevik/etree"
	"gorm.io/gorm"
)

// IssueReceiptInput carries everything receipt issuance needs. Callers resolve
// the property and owner before calling Issue; no lookups happen inside.
// When PropertySnapshot/OwnerSnapshot are set they are stored as-is; Property
// is only consulted to build fresh snapshots when they are not.
type IssueReceiptInput struct {
	Source           models.ReceiptSource
	Prefix           string
	IssueDate        time.Time
	TotalAmount      float64
	Property         *models.Property // unused when snapshots are provided
	PropertySnapshot *models.PropertySnapshot
	OwnerSnapshot    *models.OwnerSnapshot
	FeePeriod        string
	Notes            string
}

// ReceiptService issues and manages immutable proof-of-payment records
type ReceiptService struct {
	db           *gorm.DB
	correlatives *CorrelativeService
	hmacKey      []byte
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(db *gorm.DB, correlatives *CorrelativeService, hmacKey []byte) *ReceiptService {
	return &ReceiptService{
		db:           db,
		correlatives: correlatives,
		hmacKey:      hmacKey,
	}
}

// SnapshotProperty freezes property and owner details for a receipt. A nil
// property yields placeholder snapshots rather than nulls; nulls are reserved
// for expense receipts, which have no property at all.
func SnapshotProperty(p *models.Property) (*models.PropertySnapshot, *models.OwnerSnapshot) {
	if p == nil {
		return &models.PropertySnapshot{
				Villa:      "N/A",
				RowLetter:  "N/A",
				OwnerName:  "Propietario no registrado",
				OwnerPhone: "N/A",
			}, &models.OwnerSnapshot{
				Name:  "Propietario no registrado",
				Phone: "N/A",
			}
	}

	prop := &models.PropertySnapshot{
		Villa:      p.Villa,
		RowLetter:  p.RowLetter,
		Number:     p.Number,
		OwnerName:  p.OwnerName,
		OwnerPhone: p.OwnerPhone,
	}

	owner := &models.OwnerSnapshot{
		Name:  p.OwnerName,
		Phone: p.OwnerPhone,
	}
	if p.Owner != nil {
		owner.Name = p.Owner.FullName
		owner.Phone = p.Owner.Phone
	}
	if owner.Name == "" {
		owner.Name = "Propietario no registrado"
	}
	if owner.Phone == "" {
		owner.Phone = "N/A"
	}

	return prop, owner
}

// Issue creates a receipt inside the given transaction. The correlative number
// is allocated in the same transaction so a rollback releases it together with
// the receipt row. A source that already has a receipt is rejected.
func (s *ReceiptService) Issue(tx *gorm.DB, input IssueReceiptInput) (*models.Receipt, error) {
	if tx == nil {
		tx = s.db
	}

	if err := input.Source.Validate(); err != nil {
		return nil, Validation("%s", err.Error())
	}
	if input.TotalAmount <= 0 {
		return nil, Validation("receipt amount must be greater than zero")
	}

	// One receipt per source record
	var count int64
	query := tx.Model(&models.Receipt{})
	switch input.Source.Kind {
	case models.ReceiptSourcePayment:
		query = query.Where("payment_id = ?", *input.Source.PaymentID)
	case models.ReceiptSourceMiscellaneous:
		query = query.Where("miscellaneous_payment_id = ?", *input.Source.MiscellaneousPaymentID)
	case models.ReceiptSourceExpense:
		query = query.Where("expense_id = ?", *input.Source.ExpenseID)
	}
	if err := query.Count(&count).Error; err != nil {
		return nil, Internal("failed to check for existing receipt", err)
	}
	if count > 0 {
		return nil, Invariant("a receipt already exists for this record")
	}

	number, err := s.correlatives.Next(tx, input.Prefix, input.IssueDate.Year())
	if err != nil {
		return nil, err
	}

	receipt := &models.Receipt{
		CorrelativeNumber:      number,
		SourceKind:             input.Source.Kind,
		PaymentID:              input.Source.PaymentID,
		MiscellaneousPaymentID: input.Source.MiscellaneousPaymentID,
		ExpenseID:              input.Source.ExpenseID,
		IssueDate:              input.IssueDate,
		TotalAmount:            input.TotalAmount,
		FeePeriod:              input.FeePeriod,
		Notes:                  input.Notes,
	}

	// Expense receipts keep null snapshots; everything else gets a frozen
	// copy of the property and owner details. Snapshots captured earlier by
	// the caller take precedence over the live property record.
	if input.Source.Kind != models.ReceiptSourceExpense {
		if input.PropertySnapshot != nil {
			receipt.PropertyDetails = input.PropertySnapshot
			receipt.OwnerDetails = input.OwnerSnapshot
		} else {
			receipt.PropertyDetails, receipt.OwnerDetails = SnapshotProperty(input.Property)
		}
	}

	receipt.Signature = utils.SignReceipt(number, input.TotalAmount, input.IssueDate.Format("2006-01-02"), s.hmacKey)

	if err := tx.Create(receipt).Error; err != nil {
		return nil, Internal("failed to create receipt", err)
	}

	return receipt, nil
}

// GetByID returns a receipt with its source record loaded
func (s *ReceiptService) GetByID(id uint) (*models.Receipt, error) {
	var receipt models.Receipt
	err := s.db.
		Preload("Payment").
		Preload("MiscellaneousPayment").
		Preload("Expense").
		First(&receipt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("receipt %d not found", id)
		}
		return nil, Internal("failed to load receipt", err)
	}
	return &receipt, nil
}

// GetByCorrelativeNumber returns a receipt by its printed number
func (s *ReceiptService) GetByCorrelativeNumber(number string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := s.db.Where("correlative_number = ?", number).First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("receipt %s not found", number)
		}
		return nil, Internal("failed to load receipt", err)
	}
	return &receipt, nil
}

// ReceiptFilter narrows receipt listings
type ReceiptFilter struct {
	Year   int
	Prefix string
	Limit  int
	Offset int
}

// List returns receipts matching the filter, newest first
func (s *ReceiptService) List(filter ReceiptFilter) ([]models.Receipt, error) {
	query := s.db.Model(&models.Receipt{})
	if filter.Prefix != "" {
		query = query.Where("correlative_number LIKE ?", filter.Prefix+"-%")
	}
	if filter.Year > 0 {
		query = query.Where("correlative_number LIKE ?", fmt.Sprintf("%%-%d-%%", filter.Year))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var receipts []models.Receipt
	if err := query.Order("id DESC").Find(&receipts).Error; err != nil {
		return nil, Internal("failed to list receipts", err)
	}
	return receipts, nil
}

// Delete removes a receipt. Receipts are append-only otherwise; this exists
// only for explicit admin correction.
func (s *ReceiptService) Delete(id uint, actor *models.User) error {
	if !actor.IsAdmin() {
		return PermissionDenied("only administrators may delete receipts")
	}

	result := s.db.Delete(&models.Receipt{}, id)
	if result.Error != nil {
		return Internal("failed to delete receipt", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("receipt %d not found", id)
	}

	utils.LogInfo("Receipt %d deleted by user %d", id, actor.ID)
	return nil
}

// VerifySignature checks the stored signature against the receipt's fields
func (s *ReceiptService) VerifySignature(receipt *models.Receipt) bool {
	payload := fmt.Sprintf("%s|%.2f|%s", receipt.CorrelativeNumber, receipt.TotalAmount, receipt.IssueDate.Format("2006-01-02"))
	return utils.ValidateHMAC(payload, receipt.Signature, s.hmacKey)
}

// ExportXML renders the receipt as an XML document for archival exchange
func (s *ReceiptService) ExportXML(receipt *models.Receipt) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("recibo")
	root.CreateAttr("numero", receipt.CorrelativeNumber)
	root.CreateAttr("fuente", string(receipt.SourceKind))

	root.CreateElement("fecha").SetText(receipt.IssueDate.Format("2006-01-02"))
	root.CreateElement("monto").SetText(fmt.Sprintf("%.2f", receipt.TotalAmount))
	root.CreateElement("periodo").SetText(receipt.FeePeriod)

	if receipt.PropertyDetails != nil {
		prop := root.CreateElement("propiedad")
		prop.CreateElement("villa").SetText(receipt.PropertyDetails.Villa)
		prop.CreateElement("fila").SetText(receipt.PropertyDetails.RowLetter)
		prop.CreateElement("numero").SetText(fmt.Sprintf("%d", receipt.PropertyDetails.Number))
	}
	if receipt.OwnerDetails != nil {
		owner := root.CreateElement("propietario")
		owner.CreateElement("nombre").SetText(receipt.OwnerDetails.Name)
		owner.CreateElement("telefono").SetText(receipt.OwnerDetails.Phone)
	}
	if receipt.Notes != "" {
		root.CreateElement("notas").SetText(receipt.Notes)
	}
	root.CreateElement("firma").SetText(receipt.Signature)

	doc.Indent(2)
	return doc.WriteToBytes()
}
