package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamup-app/teamup-backend/api/controllers"
	"github.com/teamup-app/teamup-backend/api/middleware"
	"github.com/teamup-app/teamup-backend/internal/identity"
	"github.com/teamup-app/teamup-backend/pkg/auth"
	"github.com/teamup-app/teamup-backend/pkg/config"
	"github.com/teamup-app/teamup-backend/pkg/logger"
)

// RouterParams bundles everything the API router serves.
type RouterParams struct {
	Cfg       *config.Config
	Logg      *logger.Logger
	Identity  identity.Service
	Tokens    *auth.TokenManager
	Gatherer  prometheus.Gatherer
	Readiness []controllers.ReadinessCheck
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Cfg
	logg := params.Logg

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Readiness...))
	})

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(params.Identity, logg))
		r.Post("/login", controllers.AuthLogin(params.Identity, logg))
		r.With(middleware.Auth(params.Tokens, logg)).Get("/me", controllers.AuthMe(logg))
	})

	return r
}
