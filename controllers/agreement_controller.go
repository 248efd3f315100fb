package controllers

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"pagovecinal/middleware"
	"pagovecinal/models"
	"pagovecinal/services"

	"github.com/gorilla/mux"
)

// AgreementController handles installment plans
type AgreementController struct {
	agreements *services.AgreementService
}

// NewAgreementController creates a new AgreementController
func NewAgreementController(agreements *services.AgreementService) *AgreementController {
	return &AgreementController{agreements: agreements}
}

// createAgreementResponse flattens a creation result for the client
type createAgreementResponse struct {
	Agreement   *models.Agreement `json:"agreement"`
	DocumentErr string            `json:"document_error,omitempty"`
}

// Create builds an agreement over a set of pending fees
func (c *AgreementController) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var dto services.CreateAgreementDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.UserID = actor.ID

	result, err := c.agreements.Create(dto, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	response := createAgreementResponse{Agreement: result.Agreement}
	if result.DocumentErr != nil {
		response.DocumentErr = result.DocumentErr.Error()
	}
	writeJSON(w, http.StatusCreated, response)
}

// List returns agreements. Owners only see their own.
func (c *AgreementController) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	filter := services.AgreementFilter{
		Status: models.AgreementStatus(q.Get("status")),
	}
	if propertyID, err := strconv.ParseUint(q.Get("property_id"), 10, 32); err == nil {
		filter.PropertyID = uint(propertyID)
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}

	agreements, err := c.agreements.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agreements)
}

// Get returns a single agreement with its fees and installments
func (c *AgreementController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid agreement id", http.StatusBadRequest)
		return
	}

	agreement, err := c.agreements.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() && agreement.UserID != actor.ID && !agreement.Property.OwnedBy(actor.ID) {
		http.Error(w, "Not enough permissions", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, agreement)
}

// Update applies a partial update to an agreement
func (c *AgreementController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid agreement id", http.StatusBadRequest)
		return
	}

	var dto services.UpdateAgreementDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	agreement, err := c.agreements.Update(id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agreement)
}

// Delete dissolves an agreement, releasing its fees
func (c *AgreementController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid agreement id", http.StatusBadRequest)
		return
	}

	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := c.agreements.Delete(id, actor); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// payInstallmentResponse flattens an installment payment result
type payInstallmentResponse struct {
	Installment *models.AgreementInstallment `json:"installment"`
	Receipt     *models.Receipt              `json:"receipt"`
	Completed   bool                         `json:"agreement_completed"`
}

// PayNextInstallment settles the caller's earliest-due pending installment
func (c *AgreementController) PayNextInstallment(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var dto services.PayInstallmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := c.agreements.PayNextInstallment(dto, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payInstallmentResponse{
		Installment: result.Installment,
		Receipt:     result.Receipt,
		Completed:   result.Completed,
	})
}

// DownloadDocument streams the rendered agreement document
func (c *AgreementController) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid agreement id", http.StatusBadRequest)
		return
	}

	agreement, err := c.agreements.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if agreement.PDFFile == "" {
		http.Error(w, "Agreement document not available", http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(agreement.PDFFile)
	if err != nil {
		http.Error(w, "Agreement document not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="convenio_`+agreement.AgreementNumber+`.xml"`)
	w.Write(data)
}

// RegisterRoutes registers the agreement endpoints
func (c *AgreementController) RegisterRoutes(protected, admin *mux.Router) {
	protected.HandleFunc("/agreements", c.Create).Methods("POST")
	protected.HandleFunc("/agreements", c.List).Methods("GET")
	protected.HandleFunc("/agreements/pay-next", c.PayNextInstallment).Methods("POST")
	protected.HandleFunc("/agreements/{id}", c.Get).Methods("GET")
	admin.HandleFunc("/agreements/{id}", c.Update).Methods("PUT")
	admin.HandleFunc("/agreements/{id}", c.Delete).Methods("DELETE")
	protected.HandleFunc("/agreements/{id}/document", c.DownloadDocument).Methods("GET")
}
