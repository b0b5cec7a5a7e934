package auth

import (
	"errors"
	"net/http"

	"github.com/jonwraymond/connops/observe"
)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	role   string
	logger observe.Logger
}

// RequireRole rejects verified callers lacking role with 403.
func RequireRole(role string) MiddlewareOption {
	return func(c *middlewareConfig) { c.role = role }
}

// WithMiddlewareLogger logs rejected requests at debug.
func WithMiddlewareLogger(l observe.Logger) MiddlewareOption {
	return func(c *middlewareConfig) { c.logger = l }
}

// Middleware requires a valid bearer token on every request to next.
// Missing or invalid tokens get 401 with a WWW-Authenticate challenge.
func Middleware(a *JWTAuthenticator, next http.Handler, opts ...MiddlewareOption) http.Handler {
	cfg := middlewareConfig{logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			cfg.logger.Debug(r.Context(), "rejected admin request",
				observe.Field{Key: "path", Value: r.URL.Path},
				observe.Err(err),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="connops"`)
			status := http.StatusUnauthorized
			if errors.Is(err, ErrKeyNotFound) {
				status = http.StatusInternalServerError
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		if cfg.role != "" && !id.HasRole(cfg.role) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
