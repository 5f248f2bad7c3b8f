package routes

import (
	"order-core/controllers"
	"order-core/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, oc *controllers.OrderController, pc *controllers.PaymentController, wc *controllers.WebhookController) {
	orderRoutes := r.Group("/orders")
	orderRoutes.Use(middleware.AuthMiddleware())
	orderRoutes.POST("/", oc.CreateOrder)
	orderRoutes.GET("/", oc.GetOrders)
	orderRoutes.GET("/:id", oc.GetOrderByID)
	orderRoutes.POST("/:id/cancel", oc.Cancel)
	orderRoutes.GET("/:id/payments", oc.ListPayments)
	orderRoutes.GET("/:id/payment-url", pc.GetPaymentURL)

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(middleware.AuthMiddleware(), middleware.AdminOnly())
	adminRoutes.GET("/orders", oc.GetAllOrders)
	adminRoutes.PATCH("/orders/:id/status", oc.UpdateStatus)

	// Provider-facing endpoints authenticate by signature / payload
	// matching, not by user identity.
	r.GET("/payments/gateway/callback", pc.GatewayCallback)
	r.POST("/webhooks/bank-transfer", wc.BankTransfer)
}
