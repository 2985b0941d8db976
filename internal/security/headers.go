// Package security carries the HTTP hardening middleware mounted in front of the API router.
package security

import (
	"net/http"

	"github.com/unrolled/secure"
)

const defaultHSTSMaxAge = 31536000

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int64
	HSTSIncludeSubdomains bool
}

// Middleware attaches standard security headers to each response. HSTS is only sent on
// requests that arrived over TLS, directly or through a proxy setting X-Forwarded-Proto.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	opts := secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "no-referrer",
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	}
	if h.EnableHSTS {
		opts.STSSeconds = h.HSTSMaxAge
		if opts.STSSeconds <= 0 {
			opts.STSSeconds = defaultHSTSMaxAge
		}
		opts.STSIncludeSubdomains = h.HSTSIncludeSubdomains
	}
	return secure.New(opts).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	}))
}
