package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope is the JSON body shape shared by every service.
type Envelope struct {
	Success     bool   `json:"success"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	SyncWarning bool   `json:"syncWarning,omitempty"`
	Retryable   bool   `json:"retryable,omitempty"`
}

// JSON writes payload with the given status code.
func JSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// OK writes a success envelope around data.
func OK(w http.ResponseWriter, code int, data any) {
	JSON(w, code, Envelope{Success: true, Data: data})
}

// Error writes a failure envelope carrying err's message.
func Error(w http.ResponseWriter, code int, err error) {
	JSON(w, code, Envelope{Success: false, Error: err.Error()})
}

// Retryable writes a failure envelope that tells the caller the request may be repeated.
func Retryable(w http.ResponseWriter, code int, err error) {
	JSON(w, code, Envelope{Success: false, Error: err.Error(), Retryable: true})
}
