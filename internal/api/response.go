package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sporenet/sporenet/internal/corerr"
)

// Response represents a standard API response
// VERIFIED: Matches local-memory response format exactly
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse sends a success response
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, &Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreatedResponse sends a 201 created response
func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, &Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, &Response{
		Success: false,
		Message: message,
	})
}

// BadRequestError sends a 400 error
func BadRequestError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

// NotFoundError sends a 404 error
func NotFoundError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

// NotFoundErrorWithID sends a 404 error matching local-memory format
func NotFoundErrorWithID(c *gin.Context, id string) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "not_found",
		"id":    id,
	})
}

// InternalError sends a 500 error
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// UnauthorizedError sends a 401 error
func UnauthorizedError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

// TooManyRequestsError sends a 429 error
func TooManyRequestsError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusTooManyRequests, message)
}

// PayloadTooLargeError sends a 413 error
func PayloadTooLargeError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, message)
}

// FromCoreError sends the HTTP response matching err's corerr.Kind,
// falling back to a 500 for errors outside the core taxonomy.
func FromCoreError(c *gin.Context, err error) {
	ce, ok := err.(*corerr.Error)
	if !ok {
		InternalError(c, err.Error())
		return
	}

	switch ce.Kind {
	case corerr.NotFound:
		NotFoundError(c, ce.Error())
	case corerr.Ambiguous:
		ErrorResponse(c, http.StatusConflict, ce.Error())
	case corerr.InvalidArgument:
		BadRequestError(c, ce.Error())
	case corerr.ProviderFailure:
		ErrorResponse(c, http.StatusBadGateway, ce.Error())
	default:
		InternalError(c, ce.Error())
	}
}
