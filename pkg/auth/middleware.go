package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/vault-teller/pkg/app/errors"
	apphttp "github.com/chainsafe/vault-teller/pkg/app/http"
	"github.com/chainsafe/vault-teller/pkg/config"
)

// Middleware resolves request credentials into an Actor on the request
// context. Requests carrying invalid credentials are rejected; requests
// carrying none continue anonymous and each handler decides what its
// operation requires.
type Middleware struct {
	validator *JWTValidator
	apiKeys   map[string]*Actor
	logger    *zap.Logger
}

// NewMiddleware builds the authentication middleware from configuration.
func NewMiddleware(cfg config.AuthConfig, logger *zap.Logger) *Middleware {
	m := &Middleware{
		apiKeys: make(map[string]*Actor, len(cfg.APIKeys)),
		logger:  logger,
	}
	if cfg.JWKSURL != "" {
		m.validator = NewJWTValidator(cfg.JWKSURL, cfg.Issuer)
	}
	for _, k := range cfg.APIKeys {
		m.apiKeys[k.Key] = &Actor{
			Subject:      "key:" + k.Name,
			Capabilities: CapabilitiesFromStrings(k.Capabilities),
		}
	}
	return m
}

// Authenticate is a chi-compatible middleware.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-API-Key"); key != "" {
			actor, ok := m.apiKeys[key]
			if !ok {
				m.logger.Warn("Rejected unknown API key", zap.String("path", r.URL.Path))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "invalid API key"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
			return
		}

		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			if m.validator == nil || !m.validator.IsConfigured() {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "token authentication not configured"))
				return
			}
			actor, err := m.validator.ValidateActor(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				m.logger.Warn("Authentication failed",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
			return
		}

		next.ServeHTTP(w, r)
	})
}
