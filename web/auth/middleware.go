package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/padronlabs/padron/models"
)

// ContextKey is used to store user information in the request context.
type ContextKey string

// UserIDKey is the context key for the authenticated user id.
const UserIDKey ContextKey = "user_id"

// AuthHeaderName is the name of the authentication header.
const AuthHeaderName = "Authorization"

// Middleware guards routes behind bearer-token verification.
type Middleware struct {
	provider IdentityProvider
	logger   *zap.Logger
}

func NewMiddleware(provider IdentityProvider, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Middleware{provider: provider, logger: logger}
}

// Authenticate verifies the bearer token against the identity provider and
// stores the user id in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get(AuthHeaderName)
		if authHeader == "" {
			sendUnauthorized(w, "missing authorization header")

			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			sendUnauthorized(w, "invalid authorization format")

			return
		}

		userID, err := m.provider.VerifyToken(parts[1])
		if err != nil {
			m.logger.Debug("token verification failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			sendUnauthorized(w, "invalid token")

			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the authenticated user id from the request context.
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return "", errors.New("user not authenticated")
	}

	return userID, nil
}

func sendUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(models.APIError{
		Code:    http.StatusUnauthorized,
		Message: message,
	})
}
