package paywall

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/channel-paywall/internal/config"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/broadcast/broadcastcreate"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/broadcast/broadcastread"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/health"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/payment/approve"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/payment/extend"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/payment/reissue"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/payment/reject"
	"github.com/magabrotheeeer/channel-paywall/internal/http/middlewarectx"
)

// PaymentService операции администратора над записями о платежах.
type PaymentService interface {
	approve.Service
	reject.Service
	extend.Service
	reissue.Service
	paymentlist.Service
}

// BroadcastService очередь рассылок.
type BroadcastService interface {
	broadcastcreate.Service
	broadcastread.Service
}

// RouteDeps зависимости маршрутов.
type RouteDeps struct {
	Payments   PaymentService
	Broadcasts BroadcastService
	Auth       login.Service
	Tokens     middlewarectx.TokenParser
	Checks     map[string]health.Pinger
}

// RegisterRoutes регистрирует маршруты административного API.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.HTTPServer, deps RouteDeps) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Get("/health", health.New(logger, deps.Checks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, logger))

		r.Post("/login", login.New(logger, deps.Auth).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))

			r.Post("/payments/{key}/approve", approve.New(logger, deps.Payments).ServeHTTP)
			r.Post("/payments/{key}/reject", reject.New(logger, deps.Payments).ServeHTTP)
			r.Post("/payments/{key}/extend", extend.New(logger, deps.Payments).ServeHTTP)
			r.Post("/payments/{key}/invite", reissue.New(logger, deps.Payments).ServeHTTP)
			r.Get("/users/{userID}/payments", paymentlist.New(logger, deps.Payments).ServeHTTP)

			r.Post("/broadcasts", broadcastcreate.New(logger, deps.Broadcasts).ServeHTTP)
			r.Get("/broadcasts/{id}", broadcastread.New(logger, deps.Broadcasts).ServeHTTP)
		})
	})
}
