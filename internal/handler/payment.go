package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tuition/internal/domain"
	"tuition/internal/repository"
	"tuition/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ProcessPaymentRequest is the HTTP request body for processing a payment.
type ProcessPaymentRequest struct {
	ParentID  int64            `json:"parent_id" binding:"required"`
	StudentID int64            `json:"student_id" binding:"required"`
	Amount    *decimal.Decimal `json:"amount" binding:"required"`
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	ParentID      int64           `json:"parent_id"`
	StudentID     int64           `json:"student_id"`
	Amount        decimal.Decimal `json:"amount"`
	ChargedAmount decimal.Decimal `json:"charged_amount"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toPaymentResponse(payment *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            payment.ID,
		Reference:     payment.Reference,
		ParentID:      payment.ParentID,
		StudentID:     payment.StudentID,
		Amount:        payment.Amount,
		ChargedAmount: payment.ChargedAmount,
		Status:        string(payment.Status),
		Reason:        string(payment.Reason),
		Description:   payment.Description,
		CreatedAt:     payment.CreatedAt,
	}
}

// ProcessPayment handles POST /v1/payments
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "parent_id, student_id and amount are required"})
		return
	}

	payment, err := h.paymentService.ProcessPayment(c.Request.Context(), service.ProcessPaymentRequest{
		ParentID:  req.ParentID,
		StudentID: req.StudentID,
		Amount:    *req.Amount,
	})
	if err != nil {
		respondPaymentError(c, err, payment)
		return
	}

	respondJSON(c, http.StatusCreated, toPaymentResponse(payment))
}

// GetPayments handles GET /v1/payments
func (h *PaymentHandler) GetPayments(c *gin.Context) {
	var filter repository.PaymentFilter
	var err error

	if raw := c.Query("parent_id"); raw != "" {
		if filter.ParentID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "parent_id must be an integer"})
			return
		}
	}
	if raw := c.Query("student_id"); raw != "" {
		if filter.StudentID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "student_id must be an integer"})
			return
		}
	}

	payments, err := h.paymentService.GetPayments(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		response = append(response, toPaymentResponse(payment))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, service.ErrInvalidPaymentID)
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// GetReceipt handles GET /v1/payments/:id/receipt
func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, service.ErrInvalidPaymentID)
		return
	}

	receipt, err := h.paymentService.GetReceipt(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.String(http.StatusOK, service.FormatReceipt(receipt))
}
