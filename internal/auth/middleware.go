package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"snipr/internal/domain"
	"snipr/internal/repository"
)

// APIKeyHeader carries the caller's key on API requests.
const APIKeyHeader = "X-API-Key"

// AdminTokenHeader carries the super-admin token on admin requests.
const AdminTokenHeader = "X-Admin-Token"

// ContextKey is the type for request context keys set by middleware.
type ContextKey string

const apiKeyContextKey ContextKey = "api_key"

// Middleware resolves API keys and admin tokens on inbound requests.
type Middleware struct {
	storage    repository.Storage
	adminToken string
	log        *zap.Logger
}

func NewMiddleware(storage repository.Storage, adminToken string, log *zap.Logger) *Middleware {
	return &Middleware{
		storage:    storage,
		adminToken: adminToken,
		log:        log,
	}
}

// RequireAPIKey validates the X-API-Key header against the store and puts
// the resolved key into the request context. Missing, unknown and
// deactivated keys are all rejected with 401.
func (m *Middleware) RequireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(APIKeyHeader))
		if token == "" {
			m.log.Debug("missing api key header")
			http.Error(w, "API key required", http.StatusUnauthorized)
			return
		}

		key, err := m.storage.GetAPIKeyByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, repository.ErrKeyNotFound) {
				m.log.Debug("unknown api key")
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			m.log.Error("failed to resolve api key", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !key.IsActive {
			m.log.Debug("deactivated api key", zap.Int64("key_id", key.ID))
			http.Error(w, "API key is deactivated", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireAdmin gates super-admin operations behind the configured admin
// token. When no token is configured the admin surface is disabled.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.adminToken == "" {
			http.Error(w, "Admin API is disabled", http.StatusForbidden)
			return
		}

		supplied := strings.TrimSpace(r.Header.Get(AdminTokenHeader))
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(m.adminToken)) != 1 {
			m.log.Debug("invalid admin token")
			http.Error(w, "Invalid admin token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// APIKeyFromContext returns the key resolved by RequireAPIKey.
func APIKeyFromContext(ctx context.Context) (*domain.ApiKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*domain.ApiKey)
	return key, ok
}
