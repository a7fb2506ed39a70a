package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/madrasahportal/golang_services/internal/public_api_service/middleware"
)

type RouterConfig struct {
	JWTSecret      []byte
	RequestTimeout time.Duration
	Messages       *MessageHandler
	Payments       *PaymentHandler
	Sync           *SyncHandler
	Admin          *AdminHandler
	Logger         *slog.Logger
}

// NewRouter mounts every API route under /v1 behind bearer authentication.
// /healthz and /metrics stay public.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	authMW := middleware.AuthMiddleware(cfg.JWTSecret, cfg.Logger)
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(chi_middleware.Timeout(cfg.RequestTimeout))
		v1.Use(authMW)

		cfg.Messages.RegisterRoutes(v1)
		cfg.Payments.RegisterRoutes(v1)
		cfg.Sync.RegisterRoutes(v1)

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin(cfg.Logger))
			cfg.Payments.RegisterAdminRoutes(admin)
			cfg.Admin.RegisterRoutes(admin)
		})
	})
	return r
}
