package router

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/gabrielmiguelok/kycform/pkg/logging"
	"github.com/gabrielmiguelok/kycform/pkg/tracing"
)

// DefaultCSP allows same-origin assets and WebSocket connections only.
// Pages must not rely on inline scripts or styles.
const DefaultCSP = "default-src 'self'; " +
	"script-src 'self'; " +
	"style-src 'self'; " +
	"img-src 'self' data:; " +
	"connect-src 'self' ws: wss:; " +
	"font-src 'self'; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

// SecureHeadersConfig configures security headers.
type SecureHeadersConfig struct {
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
	PermissionsPolicy     string
	ContentSecurityPolicy string

	HSTSEnabled           bool
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool
}

// DefaultSecureHeadersConfig returns the headers used for the form pages.
func DefaultSecureHeadersConfig() SecureHeadersConfig {
	return SecureHeadersConfig{
		FrameOptions:          "DENY",
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
		ContentSecurityPolicy: DefaultCSP,
		HSTSEnabled:           true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
	}
}

// SecureHeaders sets the default security headers.
func SecureHeaders() Middleware {
	return SecureHeadersWithConfig(DefaultSecureHeadersConfig())
}

// SecureHeadersWithConfig sets security headers from config.
func SecureHeadersWithConfig(config SecureHeadersConfig) Middleware {
	hsts := "max-age=" + strconv.Itoa(config.HSTSMaxAge)
	if config.HSTSIncludeSubDomains {
		hsts += "; includeSubDomains"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if config.FrameOptions != "" {
				h.Set("X-Frame-Options", config.FrameOptions)
			}
			if config.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", config.PermissionsPolicy)
			}
			if config.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", config.ContentSecurityPolicy)
			}

			// HSTS only over HTTPS
			if config.HSTSEnabled && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", hsts)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks responses as uncacheable. Form pages carry personal data.
func NoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultStack returns the middleware chain for the public server, outermost
// first.
func DefaultStack(logger logging.Logger, tracer *tracing.Tracer) []Middleware {
	return []Middleware{
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		tracing.TracingMiddleware(tracer),
		SecureHeaders(),
	}
}
