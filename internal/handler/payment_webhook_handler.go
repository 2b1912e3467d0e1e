package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripstay/internal/service"
)

// PaymentWebhookHandler receives gateway push notifications. The payload's
// status field is never acted on; the service re-verifies with the gateway.
type PaymentWebhookHandler struct {
	svc           *service.PaymentService
	webhookSecret string
	log           *zap.Logger
}

func NewPaymentWebhookHandler(svc *service.PaymentService, webhookSecret string, log *zap.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{svc: svc, webhookSecret: webhookSecret, log: log}
}

// Handle processes POST /payments/webhook/.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body"})
		return
	}
	if h.webhookSecret != "" {
		sig := c.GetHeader("X-Webhook-Signature")
		if !h.verifySignature(body, sig) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
			return
		}
	}
	var payload struct {
		TxRef string `json:"tx_ref"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}
	if payload.TxRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing transaction reference"})
		return
	}
	outcome, err := h.svc.HandleWebhook(c.Request.Context(), payload.TxRef)
	if outcome == service.WebhookNotFound {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Payment not found"})
		return
	}
	if err != nil {
		h.log.Error("webhook verification failed", zap.String("tx_ref", payload.TxRef), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Webhook verification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook processed successfully"})
}

func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
