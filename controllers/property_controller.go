package controllers

import (
	"encoding/json"
	"net/http"

	"pagovecinal/middleware"
	"pagovecinal/services"

	"github.com/gorilla/mux"
)

// PropertyController handles condominium unit management
type PropertyController struct {
	properties *services.PropertyService
}

// NewPropertyController creates a new PropertyController
func NewPropertyController(properties *services.PropertyService) *PropertyController {
	return &PropertyController{properties: properties}
}

// List returns all properties for admins, own properties for owners
func (c *PropertyController) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if actor.IsAdmin() {
		properties, err := c.properties.List()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, properties)
		return
	}

	properties, err := c.properties.ListByOwner(actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

// Get returns a single property
func (c *PropertyController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid property id", http.StatusBadRequest)
		return
	}

	property, err := c.properties.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	actor, err := middleware.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() && !property.OwnedBy(actor.ID) {
		http.Error(w, "Not enough permissions", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, property)
}

// Create inserts a new property
func (c *PropertyController) Create(w http.ResponseWriter, r *http.Request) {
	var dto services.CreatePropertyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	property, err := c.properties.Create(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, property)
}

// Update applies owner changes to a property
func (c *PropertyController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid property id", http.StatusBadRequest)
		return
	}

	var dto services.UpdatePropertyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	property, err := c.properties.Update(id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, property)
}

// Delete removes a property without fees or agreements
func (c *PropertyController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid property id", http.StatusBadRequest)
		return
	}

	if err := c.properties.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the property endpoints. Mutations are wired behind
// the admin router by the caller.
func (c *PropertyController) RegisterRoutes(protected, admin *mux.Router) {
	protected.HandleFunc("/properties", c.List).Methods("GET")
	protected.HandleFunc("/properties/{id}", c.Get).Methods("GET")
	admin.HandleFunc("/properties", c.Create).Methods("POST")
	admin.HandleFunc("/properties/{id}", c.Update).Methods("PUT")
	admin.HandleFunc("/properties/{id}", c.Delete).Methods("DELETE")
}
