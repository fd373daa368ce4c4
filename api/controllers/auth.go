package controllers

import (
	"net/http"

	"github.com/teamup-app/teamup-backend/api/middleware"
	"github.com/teamup-app/teamup-backend/api/responses"
	"github.com/teamup-app/teamup-backend/api/validators"
	"github.com/teamup-app/teamup-backend/internal/identity"
	pkgerrors "github.com/teamup-app/teamup-backend/pkg/errors"
	"github.com/teamup-app/teamup-backend/pkg/logger"
)

// AuthRegister creates the account and returns it. Provisioning of the
// role-specific profile happens asynchronously.
func AuthRegister(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		var body identity.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AuthMe echoes the identity carried by the bearer token.
func AuthMe(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"userId":   userID,
			"username": middleware.UsernameFromContext(r.Context()),
			"role":     middleware.RoleFromContext(r.Context()),
		})
	}
}

// AuthLogin verifies credentials and returns an access token.
func AuthLogin(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		var body identity.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
