package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
	"github.com/akarX23/iisc-deas-project-1/internal/orchestrator"
	"github.com/akarX23/iisc-deas-project-1/internal/results"
	"github.com/akarX23/iisc-deas-project-1/internal/runner"
)

// Error codes returned in API responses
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeDataAccess     = "DATA_ACCESS"
	ErrCodeNoResults      = "NO_RESULTS"
	ErrCodeBusy           = "BUSY"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// APIError is the structured error response body.
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// writeAPIError maps known errors to structured responses.
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr APIError
	statusCode := http.StatusInternalServerError

	switch {
	case errors.Is(err, benchconfig.ErrInvalid):
		apiErr = APIError{Code: ErrCodeConfigInvalid, Message: err.Error()}
		statusCode = http.StatusBadRequest

	case errors.Is(err, runner.ErrDataAccess):
		apiErr = APIError{Code: ErrCodeDataAccess, Message: err.Error()}
		statusCode = http.StatusNotFound

	case errors.Is(err, results.ErrNoResults), errors.Is(err, results.ErrNoValidResults):
		apiErr = APIError{Code: ErrCodeNoResults, Message: err.Error()}
		statusCode = http.StatusNotFound

	case errors.Is(err, orchestrator.ErrBusy):
		apiErr = APIError{Code: ErrCodeBusy, Message: err.Error()}
		statusCode = http.StatusConflict

	default:
		apiErr = APIError{Code: ErrCodeInternalError, Message: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErr)
}

// writeValidationError writes a 400 Bad Request.
func writeValidationError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(APIError{Code: ErrCodeInvalidRequest, Message: message})
}
