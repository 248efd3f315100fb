package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pagovecinal/middleware"
	"pagovecinal/models"
	"pagovecinal/services"

	"github.com/gorilla/mux"
)

// MiscellaneousPaymentController handles ad-hoc owner payments
type MiscellaneousPaymentController struct {
	payments *services.MiscellaneousPaymentService
}

// NewMiscellaneousPaymentController creates a new MiscellaneousPaymentController
func NewMiscellaneousPaymentController(payments *services.MiscellaneousPaymentService) *MiscellaneousPaymentController {
	return &MiscellaneousPaymentController{payments: payments}
}

// Create inserts a pending miscellaneous payment
func (c *MiscellaneousPaymentController) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var dto services.CreateMiscellaneousPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.UserID = actor.ID

	payment, err := c.payments.Create(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// List returns miscellaneous payments
func (c *MiscellaneousPaymentController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}

	payments, err := c.payments.List(models.PaymentStatus(q.Get("status")), limit, (page-1)*limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// Get returns a single miscellaneous payment
func (c *MiscellaneousPaymentController) Get(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, payment)
}

// miscApproveResponse flattens an approval result for the client
type miscApproveResponse struct {
	Payment    *models.MiscellaneousPayment `json:"payment"`
	Receipt    *models.Receipt              `json:"receipt,omitempty"`
	ReceiptErr string                       `json:"receipt_error,omitempty"`
}

// Approve moves a pending miscellaneous payment to APPROVED
func (c *MiscellaneousPaymentController) Approve(w http.ResponseWriter, r *http.Request) {
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

	response := miscApproveResponse{
		Payment: result.Payment,
		Receipt: result.Receipt,
	}
	if result.ReceiptErr != nil {
		response.ReceiptErr = result.ReceiptErr.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

// updateMiscRequest carries the editable fields of a pending payment
type updateMiscRequest struct {
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	Notes       *string  `json:"notes"`
}

// Update edits a pending miscellaneous payment
func (c *MiscellaneousPaymentController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	var req updateMiscRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := c.payments.Update(id, req.Amount, req.Description, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// Delete removes a pending miscellaneous payment
func (c *MiscellaneousPaymentController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	if err := c.payments.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the miscellaneous payment endpoints
func (c *MiscellaneousPaymentController) RegisterRoutes(protected, admin *mux.Router) {
	protected.HandleFunc("/miscellaneous-payments", c.Create).Methods("POST")
	admin.HandleFunc("/miscellaneous-payments", c.List).Methods("GET")
	admin.HandleFunc("/miscellaneous-payments/{id}", c.Get).Methods("GET")
	admin.HandleFunc("/miscellaneous-payments/{id}", c.Update).Methods("PUT")
	admin.HandleFunc("/miscellaneous-payments/{id}", c.Delete).Methods("DELETE")
	admin.HandleFunc("/miscellaneous-payments/{id}/approve", c.Approve).Methods("POST")
}
