package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"pagovecinal/middleware"
	"pagovecinal/models"
	"pagovecinal/services"
	"pagovecinal/utils"

	"github.com/gorilla/mux"
)

// PaymentController handles settlement attempts against fees
type PaymentController struct {
	payments *services.PaymentService
	reports  *services.ReportService
	store    *utils.FileStore
}

// NewPaymentController creates a new PaymentController
func NewPaymentController(payments *services.PaymentService, reports *services.ReportService, store *utils.FileStore) *PaymentController {
	return &PaymentController{
		payments: payments,
		reports:  reports,
		store:    store,
	}
}

// Create inserts a pending payment. Accepts multipart form data so the owner
// can attach a photo of their deposit slip.
func (c *PaymentController) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var dto services.CreatePaymentDTO

	contentType := r.Header.Get("Content-Type")
	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}

		feeID, _ := strconv.ParseUint(r.FormValue("fee_id"), 10, 32)
		amount, _ := strconv.ParseFloat(r.FormValue("amount"), 64)
		dto.FeeID = uint(feeID)
		dto.Amount = amount
		dto.Notes = r.FormValue("notes")
		if dateValue := r.FormValue("payment_date"); dateValue != "" {
			if t, err := time.Parse("2006-01-02", dateValue); err == nil {
				dto.PaymentDate = t
			}
		}

		if file, header, err := r.FormFile("receipt_file"); err == nil {
			defer file.Close()
			path, err := c.store.Save(file, header.Filename)
			if err != nil {
				http.Error(w, "Failed to store receipt image", http.StatusInternalServerError)
				return
			}
			dto.ReceiptFile = path
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	dto.UserID = actor.ID

	payment, err := c.payments.Create(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// List returns payments matching the query filters. Owners only see their own.
func (c *PaymentController) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	filter := services.PaymentFilter{
		Status: models.PaymentStatus(q.Get("status")),
	}
	if feeID, err := strconv.ParseUint(q.Get("fee_id"), 10, 32); err == nil {
		filter.FeeID = uint(feeID)
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}

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

	payments, err := c.payments.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// Get returns a single payment
func (c *PaymentController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	payment, err := c.payments.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() && payment.UserID != actor.ID {
		http.Error(w, "Not enough permissions", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// approveResponse flattens an approval result for the client
type approveResponse struct {
	Payment    *models.Payment `json:"payment"`
	Receipt    *models.Receipt `json:"receipt,omitempty"`
	ReceiptErr string          `json:"receipt_error,omitempty"`
}

// Approve settles a pending payment against its fee
func (c *PaymentController) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	result, err := c.payments.Approve(id)
	if err != nil {
		writeError(w, err)
		return
	}

	response := approveResponse{
		Payment: result.Payment,
		Receipt: result.Receipt,
	}
	if result.ReceiptErr != nil {
		response.ReceiptErr = result.ReceiptErr.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

// Reject declines a pending payment
func (c *PaymentController) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	payment, err := c.payments.Reject(id, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// BulkApprove approves a list of payment ids, reporting per-id outcomes
func (c *PaymentController) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentIDs []uint `json:"payment_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.PaymentIDs) == 0 {
		http.Error(w, "payment_ids is required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, c.payments.BulkApprove(body.PaymentIDs))
}

// BulkImport ingests a spreadsheet of collected payments
func (c *PaymentController) BulkImport(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(20 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := c.payments.BulkImport(file, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ImportTemplate serves an empty spreadsheet in the bulk-import layout
func (c *PaymentController) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := c.reports.ImportTemplate()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="plantilla_importacion.xlsx"`)
	w.Write(data)
}

// RegisterRoutes registers the payment endpoints
func (c *PaymentController) RegisterRoutes(protected, admin *mux.Router) {
	protected.HandleFunc("/payments", c.Create).Methods("POST")
	protected.HandleFunc("/payments", c.List).Methods("GET")
	admin.HandleFunc("/payments/bulk-approve", c.BulkApprove).Methods("POST")
	admin.HandleFunc("/payments/bulk-import", c.BulkImport).Methods("POST")
	admin.HandleFunc("/payments/import-template", c.ImportTemplate).Methods("GET")
	protected.HandleFunc("/payments/{id}", c.Get).Methods("GET")
	admin.HandleFunc("/payments/{id}/approve", c.Approve).Methods("POST")
	admin.HandleFunc("/payments/{id}/reject", c.Reject).Methods("POST")
}
