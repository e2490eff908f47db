// Package httpjson writes the service's JSON response envelope.
package httpjson

import (
	"encoding/json"
	"net/http"
)

func Write(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the standard error body: a human-readable message plus a
// stable machine-readable code.
func Error(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "internal_error", "something went wrong")
}
