package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/temple-erp/temple-pos/internal/platform/httpx"
	"github.com/temple-erp/temple-pos/internal/shared"
)

// Middleware rejects requests without a valid bearer token and stores the
// actor in the request context.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized, false)
				return
			}
			actor, err := service.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrInactiveUser) {
					logger.Error("verify token", slog.Any("error", err))
					httpx.RespondError(w, err, false)
					return
				}
				logger.Warn("rejected token", slog.String("path", r.URL.Path), slog.Any("error", err))
				httpx.RespondError(w, httpx.ErrUnauthorized, false)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
