package monitor

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in error responses.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeNotLoaded      = "not_loaded"
	ErrCodeInternalError  = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
