package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// TokenValidator — интерфейс проверки токенов для защищенного периметра
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

type ctxKey int

const (
	actorKey ctxKey = iota
	scopesKey
)

// Actor достает адрес подписанта из контекста запроса.
// Пустой адрес означает, что запрос не прошел через Middleware.
func Actor(ctx context.Context) domain.Address {
	if a, ok := ctx.Value(actorKey).(domain.Address); ok {
		return a
	}
	return domain.ZeroAddress
}

// Scopes достает права пользователя из контекста запроса.
func Scopes(ctx context.Context) map[string]bool {
	if s, ok := ctx.Value(scopesKey).(map[string]bool); ok {
		return s
	}
	return nil
}

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), actorKey, claims.Actor)
			ctx = context.WithValue(ctx, scopesKey, claims.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
