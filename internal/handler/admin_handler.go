package handler

import (
	"errors"
	"net/http"
	"strconv"

	"minimall/internal/models"
	"minimall/internal/repository"
	"minimall/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminHandler exposes the merchant-side operations: refunds, order
// fulfilment transitions and notification dispatch.
type AdminHandler struct {
	orderRepo  *repository.OrderRepository
	paymentSvc *service.PaymentService
	notifSvc   *service.NotificationService
}

func NewAdminHandler(orderRepo *repository.OrderRepository, paymentSvc *service.PaymentService, notifSvc *service.NotificationService) *AdminHandler {
	return &AdminHandler{orderRepo: orderRepo, paymentSvc: paymentSvc, notifSvc: notifSvc}
}

type refundReq struct {
	Amount int64  `json:"amount"` // 0 means full refund
	Reason string `json:"reason"`
}

// Refund requests a refund for a completed payment.
func (h *AdminHandler) Refund(c *gin.Context) {
	var req refundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	refundTradeID, err := h.paymentSvc.CreateRefund(c.Request.Context(), c.Param("order_no"), req.Amount, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "payment is not eligible for refund"})
			return
		}
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"refund_trade_id": refundTradeID, "status": models.RefundProcessing})
}

type transitionReq struct {
	Status string `json:"status" binding:"required"`
}

// Transition moves an order through fulfilment (shipped, delivered, ...).
func (h *AdminHandler) Transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	order, err := h.orderRepo.GetByOrderNo(c.Param("order_no"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load order"})
		}
		return
	}
	if err := service.TransitionOrder(order, req.Status); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "transition not allowed", "from": order.Status, "to": req.Status})
		return
	}
	if err := h.orderRepo.Save(order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

type batchNotifyReq struct {
	OpenIDs    []string          `json:"openids" binding:"required"`
	TemplateID string            `json:"template_id" binding:"required"`
	Data       map[string]string `json:"data"`
}

// NotifyBatch fans a templated message out to a list of recipients.
func (h *AdminHandler) NotifyBatch(c *gin.Context) {
	var req batchNotifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "openids and template_id are required"})
		return
	}
	result, err := h.notifSvc.DispatchBatch(c.Request.Context(), req.OpenIDs, req.TemplateID, req.Data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// NotifyRetry re-sends one failed notification.
func (h *AdminHandler) NotifyRetry(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	err = h.notifSvc.Retry(c.Request.Context(), uint(id))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": models.NotificationSent})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "only failed notifications can be retried"})
	case errors.Is(err, service.ErrRetryExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": "retry attempts exhausted"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "send failed", "detail": err.Error()})
	}
}
