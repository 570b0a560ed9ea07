package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the standard error response shape for the gateway API.
type APIError struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewAPIError creates a new APIError with the given message and optional details.
func NewAPIError(message string, details map[string]interface{}) *APIError {
	return &APIError{
		Error:   message,
		Details: details,
	}
}

// AbortWithBadRequest sends a 400 Bad Request response and aborts the request.
func AbortWithBadRequest(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewAPIError(message, details))
}

// AbortWithConflict sends a 409 Conflict response and aborts the request.
// Used when a search is submitted while another is still in flight.
func AbortWithConflict(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusConflict, NewAPIError(message, details))
}

// AbortWithNotFound sends a 404 Not Found response and aborts the request.
func AbortWithNotFound(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusNotFound, NewAPIError(message, details))
}

// AbortWithInternal sends a 500 Internal Server Error response and aborts the request.
func AbortWithInternal(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewAPIError(message, details))
}

// AbortWithBadGateway sends a 502 Bad Gateway response and aborts the request.
// Used when the producer backend cannot be reached.
func AbortWithBadGateway(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusBadGateway, NewAPIError(message, details))
}
