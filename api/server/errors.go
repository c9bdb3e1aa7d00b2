package server

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes returned in {"error": {"code", "message"}}.
const (
	codeValidation      = "VALIDATION_ERROR"
	codeNotFound        = "NOT_FOUND"
	codeNoRecord        = "NO_RECORD"
	codeUnauthorized    = "UNAUTHORIZED"
	codeFileTooLarge    = "FILE_TOO_LARGE"
	codeMiningExhausted = "MINING_EXHAUSTED"
	codeRateLimited     = "RATE_LIMITED"
	codeInternal        = "INTERNAL_ERROR"
)

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{
		Error: errorDetail{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
