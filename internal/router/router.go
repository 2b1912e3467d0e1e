package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tripstay/config"
	"tripstay/internal/handler"
	"tripstay/internal/middleware"
	"tripstay/internal/repository"
	"tripstay/internal/service"
	"tripstay/pkg/gateway"
	"tripstay/pkg/mailer"
)

// Setup wires repositories, services and handlers onto a gin engine. The
// returned payment service drives the expiry sweep and the dispatcher must be
// started (and stopped on shutdown) by the caller.
func Setup(cfg *config.Config, db *gorm.DB, gw gateway.Provider, mail mailer.Sender, log *zap.Logger) (*gin.Engine, *service.PaymentService, *service.NotificationDispatcher) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	listingRepo := repository.NewListingRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Services
	dispatcher := service.NewNotificationDispatcher(paymentRepo, bookingRepo, mail,
		service.DefaultRetryPolicy(), cfg.Payment.QueueSize, log)
	paymentSvc := service.NewPaymentService(paymentRepo, bookingRepo, gw, dispatcher, &cfg.Payment, log)

	// Handlers
	listingHandler := handler.NewListingHandler(listingRepo)
	bookingHandler := handler.NewBookingHandler(bookingRepo, listingRepo)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	webhookHandler := handler.NewPaymentWebhookHandler(paymentSvc, cfg.Payment.WebhookSecret, log)

	api := r.Group("/api")
	{
		listings := api.Group("/listings")
		{
			listings.POST("/", listingHandler.Create)
			listings.GET("/", listingHandler.List)
			listings.GET("/:id/", listingHandler.Get)
			listings.PUT("/:id/", listingHandler.Update)
			listings.POST("/:id/reviews/", listingHandler.CreateReview)
			listings.GET("/:id/reviews/", listingHandler.ListReviews)
		}

		bookings := api.Group("/bookings")
		{
			bookings.POST("/", bookingHandler.Create)
			bookings.GET("/", bookingHandler.List)
			bookings.GET("/:id/", bookingHandler.Get)
			bookings.PUT("/:id/", bookingHandler.Update)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/initiate/", paymentHandler.Initiate)
			payments.POST("/verify/", paymentHandler.Verify)
			payments.GET("/:payment_id/status/", paymentHandler.Status)
			payments.POST("/webhook/", webhookHandler.Handle)
		}
	}

	return r, paymentSvc, dispatcher
}
