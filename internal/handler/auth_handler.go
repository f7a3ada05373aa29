package handler

import (
	"net/http"

	"github.com/finchapp/finch/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Lock Screen Handlers
// ============================================================

func lockStatusHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		locked, err := svc.HasPassword(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"locked": locked})
	}
}

func unlockHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /auth/unlock")
		defer span.End()

		var body struct {
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		token, expiresIn, err := svc.Unlock(ctx, body.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      token,
			"expires_in": expiresIn,
		})
	}
}

func setPasswordHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /auth/password")
		defer span.End()

		var body struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := decodeBody(r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.SetPassword(ctx, body.CurrentPassword, body.NewPassword); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func clearPasswordHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /auth/password")
		defer span.End()

		var body struct {
			CurrentPassword string `json:"current_password"`
		}
		if err := decodeBody(r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.ClearPassword(ctx, body.CurrentPassword); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
