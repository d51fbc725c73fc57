package router

import (
	"context"
	"log"
	"strconv"

	"minimall/config"
	"minimall/internal/handler"
	"minimall/internal/middleware"
	"minimall/internal/models"
	"minimall/internal/repository"
	"minimall/internal/service"
	"minimall/pkg/wxmsg"
	"minimall/pkg/wxpay"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Gateway clients
	payClient := wxpay.NewClient(cfg.WechatApp.AppID, cfg.WechatPay.MerchantID, cfg.WechatPay.APIKey,
		cfg.WechatPay.BaseURL, cfg.WechatPay.NotifyURL, cfg.WechatPay.Timeout)
	msgClient := wxmsg.NewClient(cfg.WechatApp.AppID, cfg.WechatApp.AppSecret, cfg.WechatApp.BaseURL, cfg.WechatPay.Timeout)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo, payClient)
	notifSvc := service.NewNotificationService(notificationRepo, msgClient)
	paymentSvc.OnPaid(paidNotifier(notifSvc, cfg.Notify.TemplateOrderPaid))

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	orderHandler := handler.NewOrderHandler(orderRepo, userRepo, paymentSvc)
	webhookHandler := handler.NewPaymentWebhookHandler(paymentSvc)
	adminHandler := handler.NewAdminHandler(orderRepo, paymentSvc, notifSvc)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.WxLogin)
			authGroup.POST("/phone", authMw, authHandler.Phone)
			authGroup.POST("/admin/login", authHandler.AdminLogin)
		}

		// gateway callback: unauthenticated, verified by signature instead
		api.POST("/payments/notify", webhookHandler.Handle)

		orders := api.Group("/orders", authMw)
		{
			orders.POST("", orderHandler.Create)
			orders.GET("", orderHandler.List)
			orders.GET("/:order_no", orderHandler.Get)
			orders.POST("/:order_no/cancel", orderHandler.Cancel)
		}

		api.POST("/notifications/:id/read", authMw, notificationHandler.MarkRead)

		admin := api.Group("/admin", authMw, middleware.AdminRequired())
		{
			admin.POST("/orders/:order_no/refund", adminHandler.Refund)
			admin.POST("/orders/:order_no/transition", adminHandler.Transition)
			admin.POST("/notifications/batch", adminHandler.NotifyBatch)
			admin.POST("/notifications/:id/retry", adminHandler.NotifyRetry)
			admin.GET("/notifications/failed", notificationHandler.ListFailed)
		}
	}
	return r
}

// paidNotifier sends the "order paid" message to the buyer once a callback
// lands. Best effort only; the webhook response never waits on it.
func paidNotifier(notifSvc *service.NotificationService, templateID string) service.PaidHook {
	return func(order *models.Order, payment *models.PaymentRecord) {
		if templateID == "" || payment.OpenID == "" {
			return
		}
		go func() {
			data := map[string]string{
				"order_no": order.OrderNo,
				"amount":   strconv.FormatInt(payment.Amount, 10),
			}
			if _, err := notifSvc.DispatchBatch(context.Background(), []string{payment.OpenID}, templateID, data); err != nil {
				log.Printf("[NOTIFY] paid notification for %s failed: %v", order.OrderNo, err)
			}
		}()
	}
}
