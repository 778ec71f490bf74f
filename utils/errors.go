package utils

import (
	"net/http"

	"filerepo-extraction/models"

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

// RespondWithFailure maps a pipeline or search error to its HTTP status
// and stable error code.
func RespondWithFailure(c *gin.Context, err error) {
	kind := models.FailureKind(err)
	RespondWithError(c, statusFor(kind), kind, err.Error(), nil)
}

func statusFor(kind string) int {
	switch kind {
	case "unsupported_format", "corrupt_document", "invalid_argument",
		"dimension_mismatch", "empty_input":
		return http.StatusBadRequest
	case "file_not_found":
		return http.StatusNotFound
	case "already_indexing":
		return http.StatusConflict
	case "recognizer_unavailable", "embedder_unavailable":
		return http.StatusServiceUnavailable
	case "indexing_timed_out":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
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
