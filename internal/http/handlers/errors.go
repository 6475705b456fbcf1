package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"riskadmin/internal/domain"
	"riskadmin/internal/http/middleware"
)

// StatusClientClosedRequest is returned when the caller cancelled the request.
const StatusClientClosedRequest = 499

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var verr domain.ValidationError
	switch {
	case domain.AsValidation(err, &verr):
		respondError(c, http.StatusBadRequest, "validation_failed", err.Error(), verr.Fields)
	case domain.IsInvalidArgument(err):
		respondError(c, http.StatusBadRequest, "invalid_argument", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsCancelled(err):
		respondError(c, StatusClientClosedRequest, "cancelled", err.Error(), nil)
	case domain.HasCode(err, domain.CodeStoreFailure):
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	case domain.HasCode(err, domain.CodeRemarksRequired):
		respondError(c, http.StatusUnprocessableEntity, domain.CodeRemarksRequired, err.Error(), nil)
	case domain.IsDomain(err):
		var derr domain.DomainError
		_ = domain.AsDomain(err, &derr)
		respondError(c, http.StatusConflict, derr.Code, err.Error(), nil)
	default:
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
