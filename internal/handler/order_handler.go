package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"minimall/internal/middleware"
	"minimall/internal/models"
	"minimall/internal/repository"
	"minimall/internal/service"
	"minimall/pkg/wxpay"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderHandler struct {
	orderRepo  *repository.OrderRepository
	userRepo   *repository.UserRepository
	paymentSvc *service.PaymentService
}

func NewOrderHandler(orderRepo *repository.OrderRepository, userRepo *repository.UserRepository, paymentSvc *service.PaymentService) *OrderHandler {
	return &OrderHandler{orderRepo: orderRepo, userRepo: userRepo, paymentSvc: paymentSvc}
}

type createOrderReq struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// Create opens a pending order and a prepaid transaction for it, returning
// the payment parameters the mini-program needs to show the payment sheet.
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and description are required"})
		return
	}
	userID := middleware.GetUserID(c)
	user, err := h.userRepo.GetByID(userID)
	if err != nil || user.OpenID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no payment identity for this user"})
		return
	}

	orderNo := fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])
	order := &models.Order{
		OrderNo:     orderNo,
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		Status:      models.OrderPending,
	}
	if err := h.orderRepo.Create(order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create order"})
		return
	}

	params, err := h.paymentSvc.CreatePayment(c.Request.Context(), orderNo, req.Amount, req.Description, *user.OpenID)
	if err != nil {
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order, "pay_params": params})
}

// Get returns an order with its payment status.
func (h *OrderHandler) Get(c *gin.Context) {
	order, ok := h.ownOrder(c)
	if !ok {
		return
	}
	payment, err := h.paymentSvc.QueryStatus(c.Request.Context(), order.OrderNo)
	if err != nil && !errors.Is(err, service.ErrUnknownTransaction) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load payment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "payment": payment})
}

// List returns the caller's orders, newest first.
func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.orderRepo.ListByUserID(middleware.GetUserID(c), 50, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Cancel cancels a pending order and its pending payment.
func (h *OrderHandler) Cancel(c *gin.Context) {
	order, ok := h.ownOrder(c)
	if !ok {
		return
	}
	if err := service.TransitionOrder(order, models.OrderCancelled); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "order cannot be cancelled in its current state"})
		return
	}
	if err := h.paymentSvc.Cancel(c.Request.Context(), order.OrderNo); err != nil &&
		!errors.Is(err, service.ErrUnknownTransaction) && !errors.Is(err, service.ErrInvalidState) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not cancel payment"})
		return
	}
	if err := h.orderRepo.Save(order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *OrderHandler) ownOrder(c *gin.Context) (*models.Order, bool) {
	order, err := h.orderRepo.GetByOrderNo(c.Param("order_no"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load order"})
		}
		return nil, false
	}
	if order.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return nil, false
	}
	return order, true
}

// writePaymentError maps the payment error taxonomy onto responses that let
// the client distinguish "retry checkout" from "fix your input".
func writePaymentError(c *gin.Context, err error) {
	var gwErr *wxpay.GatewayError
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "payment is not in a state that allows this"})
	case errors.Is(err, service.ErrUnknownTransaction):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	case errors.As(err, &gwErr):
		// gateway rejected the parameters; retrying the same request will not help
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payment gateway rejected parameters", "code": gwErr.Code, "description": gwErr.Description})
	case errors.Is(err, wxpay.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not create payment, please retry", "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment failed"})
	}
}
