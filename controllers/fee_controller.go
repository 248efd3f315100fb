package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"pagovecinal/middleware"
	"pagovecinal/models"
	"pagovecinal/services"

	"github.com/gorilla/mux"
)

// FeeController handles fee schedules, fee generation and the fee lifecycle
type FeeController struct {
	schedules *services.FeeScheduleService
	fees      *services.FeeService
	reports   *services.ReportService
}

// NewFeeController creates a new FeeController
func NewFeeController(schedules *services.FeeScheduleService, fees *services.FeeService, reports *services.ReportService) *FeeController {
	return &FeeController{
		schedules: schedules,
		fees:      fees,
		reports:   reports,
	}
}

// CreateSchedule inserts a recurring-charge template
func (c *FeeController) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var dto services.CreateFeeScheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	schedule, err := c.schedules.Create(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

// ListSchedules returns all schedules; ?active=true narrows to active ones
func (c *FeeController) ListSchedules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	schedules, err := c.schedules.List(activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

// GetSchedule returns a single schedule
func (c *FeeController) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid schedule id", http.StatusBadRequest)
		return
	}

	schedule, err := c.schedules.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// UpdateSchedule applies a partial update to a schedule
func (c *FeeController) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid schedule id", http.StatusBadRequest)
		return
	}

	var dto services.UpdateFeeScheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	schedule, err := c.schedules.Update(id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// DeleteSchedule removes or deactivates a schedule
func (c *FeeController) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid schedule id", http.StatusBadRequest)
		return
	}

	if err := c.schedules.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Generate runs a fee generation batch
func (c *FeeController) Generate(w http.ResponseWriter, r *http.Request) {
	var dto services.GenerateFeesDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if dto.Mode == "" {
		dto.Mode = services.GenerationModeManual
	}

	created, err := c.fees.Generate(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

// feeFilterFromQuery builds a fee filter from query parameters
func feeFilterFromQuery(r *http.Request) services.FeeFilter {
	q := r.URL.Query()
	filter := services.FeeFilter{}

	filter.Year, _ = strconv.Atoi(q.Get("year"))
	filter.Month, _ = strconv.Atoi(q.Get("month"))
	if propertyID, err := strconv.ParseUint(q.Get("property_id"), 10, 32); err == nil {
		filter.PropertyID = uint(propertyID)
	}
	if statuses := q.Get("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, models.FeeStatus(strings.TrimSpace(s)))
		}
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

	return filter
}

// ListFees returns fees matching the query filters. Owners only see fees
// billed to them.
func (c *FeeController) ListFees(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filter := feeFilterFromQuery(r)
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}

	fees, err := c.fees.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fees)
}

// GetFee returns a single fee
func (c *FeeController) GetFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid fee id", http.StatusBadRequest)
		return
	}

	fee, err := c.fees.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() && (fee.UserID == nil || *fee.UserID != actor.ID) {
		http.Error(w, "Not enough permissions", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, fee)
}

// CreateFeeRequest carries data for a single manual fee
type CreateFeeRequest struct {
	PropertyID    uint   `json:"property_id"`
	FeeScheduleID uint   `json:"fee_schedule_id"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	Notes         string `json:"notes"`
	// Amount sent by clients is ignored; it always comes from the schedule
	Amount float64 `json:"amount,omitempty"`
}

// CreateFee inserts a single fee manually
func (c *FeeController) CreateFee(w http.ResponseWriter, r *http.Request) {
	var req CreateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fee, err := c.fees.Create(req.PropertyID, req.FeeScheduleID, req.Year, req.Month, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fee)
}

// updateFeeRequest mirrors UpdateFeeDTO plus the amount field clients keep
// sending; the amount is dropped before the service sees it
type updateFeeRequest struct {
	services.UpdateFeeDTO
	Amount *float64 `json:"amount,omitempty"`
}

// UpdateFee applies a partial update to a fee
func (c *FeeController) UpdateFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid fee id", http.StatusBadRequest)
		return
	}

	var req updateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fee, err := c.fees.Update(id, req.UpdateFeeDTO)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fee)
}

// DeleteFee removes a fee that is not locked into an agreement
func (c *FeeController) DeleteFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid fee id", http.StatusBadRequest)
		return
	}

	if err := c.fees.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportReport streams the fee listing as an xlsx workbook
func (c *FeeController) ExportReport(w http.ResponseWriter, r *http.Request) {
	filter := feeFilterFromQuery(r)
	filter.Limit = 0 // reports are never paginated

	data, err := c.reports.FeeReport(filter)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cuotas.xlsx"`)
	w.Write(data)
}

// RegisterRoutes registers the fee endpoints
func (c *FeeController) RegisterRoutes(protected, admin *mux.Router) {
	admin.HandleFunc("/fee-schedules", c.CreateSchedule).Methods("POST")
	protected.HandleFunc("/fee-schedules", c.ListSchedules).Methods("GET")
	protected.HandleFunc("/fee-schedules/{id}", c.GetSchedule).Methods("GET")
	admin.HandleFunc("/fee-schedules/{id}", c.UpdateSchedule).Methods("PUT")
	admin.HandleFunc("/fee-schedules/{id}", c.DeleteSchedule).Methods("DELETE")

	admin.HandleFunc("/fees/generate", c.Generate).Methods("POST")
	protected.HandleFunc("/fees", c.ListFees).Methods("GET")
	protected.HandleFunc("/fees/{id}", c.GetFee).Methods("GET")
	admin.HandleFunc("/fees", c.CreateFee).Methods("POST")
	admin.HandleFunc("/fees/{id}", c.UpdateFee).Methods("PUT")
	admin.HandleFunc("/fees/{id}", c.DeleteFee).Methods("DELETE")
	admin.HandleFunc("/reports/fees", c.ExportReport).Methods("GET")
}
