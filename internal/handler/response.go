package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tuition/internal/domain"
	"tuition/internal/repository"
	"tuition/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string               `json:"error"`
	Reason    domain.FailureReason `json:"reason,omitempty"`
	PaymentID int64                `json:"payment_id,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondPaymentError sends a rejected payment, referencing its FAILED record when one was written.
func respondPaymentError(c *gin.Context, err error, payment *domain.Payment) {
	resp := ErrorResponse{
		Error:  err.Error(),
		Reason: service.ReasonOf(err),
	}
	if payment != nil {
		resp.PaymentID = payment.ID
	}
	c.JSON(mapErrorToHTTPStatus(err), resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrParentNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidPaymentAmount),
		errors.Is(err, service.ErrInvalidPaymentID):
		return http.StatusBadRequest

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrNotAssociated):
		return http.StatusForbidden

	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
