package utils

import (
	"errors"
	"net/http"

	"document-portal/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// StatusForError maps the service error taxonomy to an HTTP status and error code.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, models.ErrNoValidDocuments):
		return http.StatusBadRequest, "no_valid_documents"
	case errors.Is(err, models.ErrUnsupportedInput):
		return http.StatusBadRequest, "unsupported_input"
	case errors.Is(err, models.ErrIndexNotFound), errors.Is(err, models.ErrSessionNotInitialized):
		return http.StatusNotFound, "index_not_found"
	case errors.Is(err, models.ErrIndexCorrupt):
		return http.StatusInternalServerError, "index_corrupt"
	case errors.Is(err, models.ErrProvider):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RespondWithServiceError renders err with the status its kind maps to.
func RespondWithServiceError(c *gin.Context, message string, err error) {
	status, code := StatusForError(err)
	RespondWithError(c, status, code, message, gin.H{"error": err.Error()})
}
