package util

import (
	"encoding/json"
	"net/http"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// JSONOK writes v with 200 OK.
func JSONOK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// JSONError writes {"error": msg} with the given status code.
func JSONError(w http.ResponseWriter, msg string, code int) {
	JSON(w, code, map[string]string{"error": msg})
}
