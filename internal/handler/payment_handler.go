package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripstay/internal/domain"
	"tripstay/internal/service"
	"tripstay/pkg/gateway"
)

type PaymentHandler struct {
	svc *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Initiate handles POST /payments/initiate/.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req struct {
		BookingID     uint   `json:"booking_id" binding:"required"`
		CustomerEmail string `json:"customer_email" binding:"required,email"`
		CustomerName  string `json:"customer_name" binding:"required,max=100"`
		CustomerPhone string `json:"customer_phone" binding:"omitempty,max=20"`
		ReturnURL     string `json:"return_url" binding:"omitempty,url"`
		WebhookURL    string `json:"webhook_url" binding:"omitempty,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid payment data", "details": err.Error()})
		return
	}
	out, err := h.svc.InitiatePayment(c.Request.Context(), service.InitiateParams{
		BookingID:     req.BookingID,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		ReturnURL:     req.ReturnURL,
		WebhookURL:    req.WebhookURL,
	})
	if err != nil {
		var gwErr *gateway.Error
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Booking not found"})
		case errors.Is(err, domain.ErrPaymentConflict):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment already exists for this booking"})
		case errors.As(err, &gwErr):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment initiation failed", "details": gwErr.Detail})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"message":      "Payment initiated successfully",
		"payment_id":   out.PaymentID,
		"checkout_url": out.CheckoutURL,
		"reference":    out.Reference,
		"amount":       out.Amount,
		"currency":     out.Currency,
	})
}

// Verify handles POST /payments/verify/.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req struct {
		TransactionID string `json:"transaction_id" binding:"required,max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid verification data", "details": err.Error()})
		return
	}
	view, err := h.svc.VerifyPayment(c.Request.Context(), req.TransactionID)
	if err != nil {
		var gwErr *gateway.Error
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Payment not found",
				"details": "No payment found with transaction ID: " + req.TransactionID})
		case errors.As(err, &gwErr):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment verification failed", "details": gwErr.Detail})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment verification completed",
		"payment": view,
	})
}

// Status handles GET /payments/:payment_id/status/.
func (h *PaymentHandler) Status(c *gin.Context) {
	view, err := h.svc.GetStatus(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": view})
}
