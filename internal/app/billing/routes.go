// Package billing предоставляет маршруты HTTP-процесса биллинга.
package billing

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/homebiyori/billing-service/internal/config"
	"github.com/homebiyori/billing-service/internal/http/handlers/billing/cancel"
	"github.com/homebiyori/billing-service/internal/http/handlers/billing/get"
	"github.com/homebiyori/billing-service/internal/http/handlers/billing/portal"
	"github.com/homebiyori/billing-service/internal/http/handlers/billing/reactivate"
	"github.com/homebiyori/billing-service/internal/http/handlers/billing/stripewebhook"
	chatappend "github.com/homebiyori/billing-service/internal/http/handlers/chat/append"
	chatlist "github.com/homebiyori/billing-service/internal/http/handlers/chat/list"
	"github.com/homebiyori/billing-service/internal/http/handlers/health"
	notificationlist "github.com/homebiyori/billing-service/internal/http/handlers/notification/list"
	"github.com/homebiyori/billing-service/internal/http/handlers/notification/markread"
	"github.com/homebiyori/billing-service/internal/http/middlewarectx"
	libjwt "github.com/homebiyori/billing-service/internal/lib/jwt"
	chatservice "github.com/homebiyori/billing-service/internal/services/chat"
	notificationservice "github.com/homebiyori/billing-service/internal/services/notification"
	subscriptionservice "github.com/homebiyori/billing-service/internal/services/subscription"
	webhookservice "github.com/homebiyori/billing-service/internal/services/webhook"
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	subscriptionService *subscriptionservice.Service,
	webhookService *webhookservice.Service,
	notificationService *notificationservice.Service,
	chatService *chatservice.Service,
	db *repository.Storage,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	jwtMaker := libjwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook провайдера аутентифицируется подписью, не JWT.
		r.Post("/webhook/stripe", stripewebhook.New(logger, webhookService, cfg.Stripe).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Get("/billing/subscription", get.New(logger, subscriptionService).ServeHTTP)
			r.Post("/billing/cancel", cancel.New(logger, subscriptionService).ServeHTTP)
			r.Post("/billing/reactivate", reactivate.New(logger, subscriptionService).ServeHTTP)
			r.Get("/billing/portal", portal.New(logger, subscriptionService, cfg.Stripe.PortalReturnURL).ServeHTTP)

			r.Post("/chat", chatappend.New(logger, chatService).ServeHTTP)
			r.Get("/chat", chatlist.New(logger, chatService).ServeHTTP)

			r.Get("/notifications", notificationlist.New(logger, notificationService).ServeHTTP)
			r.Put("/notifications/{id}/read", markread.New(logger, notificationService).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
