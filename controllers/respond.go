package controllers

import (
	"encoding/json"
	"net/http"

	"pagovecinal/services"
	"pagovecinal/utils"
)

// writeJSON encodes a response body with the given status
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a service error kind to its HTTP status
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindPermissionDenied:
		status = http.StatusForbidden
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindInvariant:
		status = http.StatusConflict
	case services.KindInternal:
		utils.LogError("Internal error: %v", err)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
