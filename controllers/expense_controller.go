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

// ExpenseController handles admin-recorded expenditures
type ExpenseController struct {
	expenses *services.ExpenseService
}

// NewExpenseController creates a new ExpenseController
func NewExpenseController(expenses *services.ExpenseService) *ExpenseController {
	return &ExpenseController{expenses: expenses}
}

// Create inserts a pending expense
func (c *ExpenseController) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var dto services.CreateExpenseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.UserID = actor.ID

	expense, err := c.expenses.Create(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

// List returns expenses matching the query filters
func (c *ExpenseController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}

	expenses, err := c.expenses.List(
		models.PaymentStatus(q.Get("status")),
		models.ExpenseType(q.Get("expense_type")),
		limit, (page-1)*limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// Get returns a single expense
func (c *ExpenseController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid expense id", http.StatusBadRequest)
		return
	}

	expense, err := c.expenses.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// expenseApproveResponse flattens an approval result for the client
type expenseApproveResponse struct {
	Expense    *models.Expense `json:"expense"`
	Receipt    *models.Receipt `json:"receipt,omitempty"`
	ReceiptErr string          `json:"receipt_error,omitempty"`
}

// Approve moves a pending expense to APPROVED
func (c *ExpenseController) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid expense id", http.StatusBadRequest)
		return
	}

	result, err := c.expenses.Approve(id)
	if err != nil {
		writeError(w, err)
		return
	}

	response := expenseApproveResponse{
		Expense: result.Expense,
		Receipt: result.Receipt,
	}
	if result.ReceiptErr != nil {
		response.ReceiptErr = result.ReceiptErr.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

// updateExpenseRequest carries the editable fields of a pending expense
type updateExpenseRequest struct {
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	Beneficiary *string  `json:"beneficiary"`
	Notes       *string  `json:"notes"`
}

// Update edits a pending expense
func (c *ExpenseController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid expense id", http.StatusBadRequest)
		return
	}

	var req updateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	expense, err := c.expenses.Update(id, req.Amount, req.Description, req.Beneficiary, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// Delete removes a pending expense
func (c *ExpenseController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid expense id", http.StatusBadRequest)
		return
	}

	if err := c.expenses.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the admin-only expense endpoints
func (c *ExpenseController) RegisterRoutes(admin *mux.Router) {
	admin.HandleFunc("/expenses", c.Create).Methods("POST")
	admin.HandleFunc("/expenses", c.List).Methods("GET")
	admin.HandleFunc("/expenses/{id}", c.Get).Methods("GET")
	admin.HandleFunc("/expenses/{id}", c.Update).Methods("PUT")
	admin.HandleFunc("/expenses/{id}", c.Delete).Methods("DELETE")
	admin.HandleFunc("/expenses/{id}/approve", c.Approve).Methods("POST")
}
