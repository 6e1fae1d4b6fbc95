package rest

import (
	"github.com/dkolesni/billing-sync/internal/api/rest/handlers"
	"github.com/dkolesni/billing-sync/internal/middleware"
	"github.com/dkolesni/billing-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware.
func SetupRouter(
	webhookHandler *handlers.WebhookHandler,
	checkoutHandler *handlers.CheckoutHandler,
	authMiddleware *middleware.JWTMiddleware,
	registry *prometheus.Registry,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Вебхуки Stripe. Аутентификация — подпись в заголовке, не JWT.
	r.POST("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	// Клиентский API
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		v1.POST("/checkout", checkoutHandler.CreateCheckoutSession)
	}

	return r
}
