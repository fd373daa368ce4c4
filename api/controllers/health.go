package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/teamup-app/teamup-backend/api/responses"
	"github.com/teamup-app/teamup-backend/pkg/config"
	pkgerrors "github.com/teamup-app/teamup-backend/pkg/errors"
	"github.com/teamup-app/teamup-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is implemented by clients that can verify their backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names a dependency probed by the readiness endpoint.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TeamUp-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TeamUp-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				typed := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency unavailable").
					WithDetails(map[string]string{"dependency": check.Name})
				responses.WriteError(r.Context(), logg, w, typed)
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
