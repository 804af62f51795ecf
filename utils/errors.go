package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes returned in ErrorResponse.ErrorCode.
const (
	CodeBadRequest       = "bad_request"
	CodeNotPDF           = "not_pdf"
	CodeNotCV            = "not_a_cv"
	CodeDuplicateCV      = "duplicate_cv"
	CodeUploadInProgress = "upload_in_progress"
	CodeFileTooLarge     = "file_too_large"
	CodeExtractionFailed = "extraction_failed"
	CodeNotFound         = "not_found"
	CodeInternal         = "internal_error"
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

func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, CodeBadRequest, message, details)
}

func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, CodeNotFound, message, nil)
}

// RespondWithConflict sends a 409 with the given code, e.g. CodeDuplicateCV.
func RespondWithConflict(c *gin.Context, errorCode, message string, details interface{}) {
	RespondWithError(c, http.StatusConflict, errorCode, message, details)
}

func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, CodeInternal, message, details)
}
