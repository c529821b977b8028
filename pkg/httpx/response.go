package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It sets Content-Type and no-store caching headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a machine-readable error body in the gateway's uniform
// {error, error_description} shape.
func WriteError(w http.ResponseWriter, code int, errCode, description string) {
	WriteJSON(w, code, map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Session and notification payloads must never be cached by intermediaries.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
