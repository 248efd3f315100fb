package services

import (
	"bytes"
	"fmt"

	"pagovecinal/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService produces spreadsheet exports of the fee and receipt state
type ReportService struct {
	db   *gorm.DB
	fees *FeeService
}

// NewReportService creates a new ReportService
func NewReportService(db *gorm.DB, fees *FeeService) *ReportService {
	return &ReportService{db: db, fees: fees}
}

var feeStatusLabels = map[models.FeeStatus]string{
	models.FeeStatusPending:       "Pendiente",
	models.FeeStatusCompleted:     "Pagada",
	models.FeeStatusAgreement:     "En convenio",
	models.FeeStatusPartiallyPaid: "Pago parcial",
	models.FeeStatusCancelled:     "Anulada",
}

// FeeReport renders the fees matching the filter as an xlsx workbook
func (s *ReportService) FeeReport(filter FeeFilter) ([]byte, error) {
	fees, err := s.fees.List(filter)
	if err != nil {
		return nil, err
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := "Cuotas"
	workbook.SetSheetName(workbook.GetSheetName(0), sheet)

	headers := []string{"Villa", "Fila", "Número", "Año", "Mes", "Monto", "Pagado", "Saldo", "Vencimiento", "Estado", "Referencia"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		workbook.SetCellValue(sheet, cell, header)
	}

	for row, fee := range fees {
		status := feeStatusLabels[fee.Status]
		if status == "" {
			status = string(fee.Status)
		}
		values := []interface{}{
			fee.Property.Villa,
			fee.Property.RowLetter,
			fee.Property.Number,
			fee.Year,
			fee.Month,
			fee.Amount,
			fee.PaidAmount,
			fee.RemainingAmount(),
			fee.DueDate.Format("02/01/2006"),
			status,
			fee.Reference,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			workbook.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, Internal("failed to write fee report", err)
	}
	return buf.Bytes(), nil
}

// ReceiptReport renders the receipts matching the filter as an xlsx workbook
func (s *ReportService) ReceiptReport(filter ReceiptFilter) ([]byte, error) {
	query := s.db.Model(&models.Receipt{})
	if filter.Prefix != "" {
		query = query.Where("correlative_number LIKE ?", filter.Prefix+"-%")
	}
	if filter.Year > 0 {
		query = query.Where("correlative_number LIKE ?", fmt.Sprintf("%%-%d-%%", filter.Year))
	}

	var receipts []models.Receipt
	if err := query.Order("correlative_number ASC").Find(&receipts).Error; err != nil {
		return nil, Internal("failed to list receipts for report", err)
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := "Recibos"
	workbook.SetSheetName(workbook.GetSheetName(0), sheet)

	headers := []string{"Número", "Fuente", "Fecha", "Monto", "Período", "Propietario"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		workbook.SetCellValue(sheet, cell, header)
	}

	for row, receipt := range receipts {
		owner := ""
		if receipt.OwnerDetails != nil {
			owner = receipt.OwnerDetails.Name
		}
		values := []interface{}{
			receipt.CorrelativeNumber,
			string(receipt.SourceKind),
			receipt.IssueDate.Format("02/01/2006"),
			receipt.TotalAmount,
			receipt.FeePeriod,
			owner,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			workbook.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, Internal("failed to write receipt report", err)
	}
	return buf.Bytes(), nil
}

// ImportTemplate renders an empty workbook with the bulk import header row
func (s *ReportService) ImportTemplate() ([]byte, error) {
	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := "Pagos"
	workbook.SetSheetName(workbook.GetSheetName(0), sheet)

	for i, header := range importColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		workbook.SetCellValue(sheet, cell, header)
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, Internal("failed to write import template", err)
	}
	return buf.Bytes(), nil
}
