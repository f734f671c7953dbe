package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a domain error to an HTTP response. Unknown errors
// are reported as 500 without leaking internals.
func writeError(w http.ResponseWriter, logger ports.Logger, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("unhandled error", ports.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    string(domain.ErrorCodeInternalError),
			Message: "internal error",
		})
		return
	}

	writeJSON(w, statusForCode(domainErr.Code), errorBody{
		Code:    string(domainErr.Code),
		Message: domainErr.Message,
		Details: domainErr.Details,
	})
}

func statusForCode(code domain.ErrorCode) int {
	err := &domain.DomainError{Code: code}
	switch {
	case domain.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsConflictError(err):
		return http.StatusConflict
	case code == domain.ErrorCodeGatewayTransient || code == domain.ErrorCodeGatewayEmptyResponse:
		return http.StatusBadGateway
	case code == domain.ErrorCodeGatewaySemantic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
