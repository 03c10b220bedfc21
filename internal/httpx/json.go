// Package httpx holds small HTTP response and cookie helpers shared by the
// API controllers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a standard JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NoStore sets response headers that forbid caching. Applied before any
// redirect or token-bearing response.
func NoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
