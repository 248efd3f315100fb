package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pagovecinal/middleware"
	"pagovecinal/services"

	"github.com/gorilla/mux"
)

// ReceiptController handles the append-only receipt archive
type ReceiptController struct {
	receipts *services.ReceiptService
	payments *services.PaymentService
	reports  *services.ReportService
}

// NewReceiptController creates a new ReceiptController
func NewReceiptController(receipts *services.ReceiptService, payments *services.PaymentService, reports *services.ReportService) *ReceiptController {
	return &ReceiptController{
		receipts: receipts,
		payments: payments,
		reports:  reports,
	}
}

// List returns receipts matching the query filters
func (c *ReceiptController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.ReceiptFilter{
		Prefix: q.Get("prefix"),
	}
	filter.Year, _ = strconv.Atoi(q.Get("year"))

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	receipts, err := c.receipts.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// Get returns a single receipt with its source record
func (c *ReceiptController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid receipt id", http.StatusBadRequest)
		return
	}

	receipt, err := c.receipts.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// CreateForPayment issues the receipt for an approved payment that is
// missing one
func (c *ReceiptController) CreateForPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentID uint `json:"payment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PaymentID == 0 {
		http.Error(w, "payment_id is required", http.StatusBadRequest)
		return
	}

	receipt, err := c.payments.RegenerateReceipt(body.PaymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// Delete removes a receipt, admin only
func (c *ReceiptController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid receipt id", http.StatusBadRequest)
		return
	}

	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := c.receipts.Delete(id, actor); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportXML streams the receipt as an XML document
func (c *ReceiptController) ExportXML(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid receipt id", http.StatusBadRequest)
		return
	}

	receipt, err := c.receipts.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := c.receipts.ExportXML(receipt)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="recibo_`+receipt.CorrelativeNumber+`.xml"`)
	w.Write(data)
}

// Verify recomputes the receipt signature and reports whether it matches
func (c *ReceiptController) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid receipt id", http.StatusBadRequest)
		return
	}

	receipt, err := c.receipts.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"correlative_number": receipt.CorrelativeNumber,
		"valid":              c.receipts.VerifySignature(receipt),
	})
}

// ExportReport streams the receipt listing as an xlsx workbook
func (c *ReceiptController) ExportReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.ReceiptFilter{
		Prefix: q.Get("prefix"),
	}
	filter.Year, _ = strconv.Atoi(q.Get("year"))

	data, err := c.reports.ReceiptReport(filter)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="recibos.xlsx"`)
	w.Write(data)
}

// RegisterRoutes registers the receipt endpoints
func (c *ReceiptController) RegisterRoutes(protected, admin *mux.Router) {
	protected.HandleFunc("/receipts", c.List).Methods("GET")
	admin.HandleFunc("/receipts", c.CreateForPayment).Methods("POST")
	admin.HandleFunc("/reports/receipts", c.ExportReport).Methods("GET")
	protected.HandleFunc("/receipts/{id}", c.Get).Methods("GET")
	admin.HandleFunc("/receipts/{id}", c.Delete).Methods("DELETE")
	protected.HandleFunc("/receipts/{id}/xml", c.ExportXML).Methods("GET")
	protected.HandleFunc("/receipts/{id}/verify", c.Verify).Methods("GET")
}
