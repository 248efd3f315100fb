package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pagovecinal/services"

	"github.com/gorilla/mux"
)

// UserController handles account administration
type UserController struct {
	users *services.UserService
}

// NewUserController creates a new UserController
func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	return uint(id), err
}

// List returns all accounts
func (c *UserController) List(w http.ResponseWriter, r *http.Request) {
	users, err := c.users.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get returns a single account
func (c *UserController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	user, err := c.users.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Create registers an account with an explicit role
func (c *UserController) Create(w http.ResponseWriter, r *http.Request) {
	var dto services.CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := c.users.Create(dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Update applies a partial update to an account
func (c *UserController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var dto services.UpdateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := c.users.Update(id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete deactivates an account
func (c *UserController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := c.users.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the admin-only user endpoints
func (c *UserController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", c.List).Methods("GET")
	router.HandleFunc("/users", c.Create).Methods("POST")
	router.HandleFunc("/users/{id}", c.Get).Methods("GET")
	router.HandleFunc("/users/{id}", c.Update).Methods("PUT")
	router.HandleFunc("/users/{id}", c.Delete).Methods("DELETE")
}
