package handler

import (
	"net/http"
	"strings"

	"github.com/finchapp/finch/internal/service"

	"go.uber.org/zap"
)

// LockMiddleware enforces the lock screen. When a lock-screen password
// is set, every request must carry a valid Bearer unlock token; when no
// password is set the tracker is open. Auth routes stay reachable so
// the lock can be opened in the first place.
func LockMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locked, err := authSvc.HasPassword(r.Context())
			if err != nil {
				logger.Error("lock check failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !locked {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "tracker is locked")
				return
			}

			if _, err := authSvc.ValidateUnlockToken(parts[1]); err != nil {
				logger.Warn("invalid unlock token", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "tracker is locked")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
