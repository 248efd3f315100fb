package services

import (
	"fmt"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/beevik/etree"
)

// DocumentService renders printable agreement documents and stores them on
// disk. Rendering is always best-effort from the caller's perspective.
type DocumentService struct {
	store *utils.FileStore
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(store *utils.FileStore) *DocumentService {
	return &DocumentService{store: store}
}

// RenderAgreement writes the agreement document and returns its stored path
func (s *DocumentService) RenderAgreement(agreement *models.Agreement, property *models.Property, fees []models.Fee, installments []models.AgreementInstallment) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("convenio")
	root.CreateAttr("numero", agreement.AgreementNumber)

	info := root.CreateElement("informacion")
	info.CreateElement("deuda_total").SetText(fmt.Sprintf("%.2f", agreement.TotalDebt))
	info.CreateElement("cuota_mensual").SetText(fmt.Sprintf("%.2f", agreement.MonthlyAmount))
	info.CreateElement("numero_cuotas").SetText(fmt.Sprintf("%d", agreement.InstallmentsCount))
	info.CreateElement("fecha_inicio").SetText(agreement.StartDate.Format("2006-01-02"))
	info.CreateElement("fecha_fin").SetText(agreement.EndDate.Format("2006-01-02"))

	prop := root.CreateElement("propiedad")
	prop.CreateElement("villa").SetText(property.Villa)
	prop.CreateElement("fila").SetText(property.RowLetter)
	prop.CreateElement("numero").SetText(fmt.Sprintf("%d", property.Number))
	prop.CreateElement("propietario").SetText(property.OwnerName)

	covered := root.CreateElement("cuotas_incluidas")
	for _, fee := range fees {
		el := covered.CreateElement("cuota")
		el.CreateAttr("referencia", fee.Reference)
		el.CreateAttr("periodo", fmt.Sprintf("%d-%02d", fee.Year, fee.Month))
		el.SetText(fmt.Sprintf("%.2f", fee.Amount))
	}

	schedule := root.CreateElement("calendario")
	for _, installment := range installments {
		el := schedule.CreateElement("pago")
		el.CreateAttr("numero", fmt.Sprintf("%d", installment.InstallmentNumber))
		el.CreateAttr("vencimiento", installment.DueDate.Format("2006-01-02"))
		el.SetText(fmt.Sprintf("%.2f", installment.Amount))
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return "", fmt.Errorf("failed to render agreement document: %v", err)
	}

	name := fmt.Sprintf("convenio_%s.xml", agreement.AgreementNumber)
	path, err := s.store.SaveBytes(data, name)
	if err != nil {
		return "", fmt.Errorf("failed to store agreement document: %v", err)
	}
	return path, nil
}
