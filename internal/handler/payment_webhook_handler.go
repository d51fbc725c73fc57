package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"minimall/internal/service"
	"minimall/pkg/wxpay"

	"github.com/gin-gonic/gin"
)

type PaymentWebhookHandler struct {
	paymentSvc *service.PaymentService
}

func NewPaymentWebhookHandler(paymentSvc *service.PaymentService) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{paymentSvc: paymentSvc}
}

// Handle processes the gateway's payment-completion callback. The gateway
// redelivers until it sees the success acknowledgement, so: verified and
// applied (or idempotently skipped) -> success ack; anything else -> fail ack
// so it retries later. Forged payloads and unknown transactions never touch
// any record.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("[CALLBACK] read body: %v", err)
		c.Data(http.StatusBadRequest, "text/xml", wxpay.AckFail("invalid body"))
		return
	}
	log.Printf("[CALLBACK] raw body: %s", string(body))

	err = h.paymentSvc.HandleCallback(c.Request.Context(), body)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "text/xml", wxpay.AckSuccess())
	case errors.Is(err, wxpay.ErrSignatureMismatch):
		log.Printf("[CALLBACK] signature mismatch, rejecting")
		c.Data(http.StatusBadRequest, "text/xml", wxpay.AckFail("signature mismatch"))
	case errors.Is(err, service.ErrUnknownTransaction):
		// acknowledged negatively without creating a record, so the gateway
		// does not redeliver into a void forever
		log.Printf("[CALLBACK] unknown transaction, rejecting")
		c.Data(http.StatusOK, "text/xml", wxpay.AckFail("unknown transaction"))
	default:
		log.Printf("[CALLBACK] processing failed: %v", err)
		c.Data(http.StatusInternalServerError, "text/xml", wxpay.AckFail("processing failed"))
	}
}
