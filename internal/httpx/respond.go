package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON and WriteError mirror the backend's envelope shapes. The fake
// backends the package tests run against answer with these.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}
