package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may call the API or open a
// websocket session.
type OriginPolicy struct {
	allowed  []string
	allowAll bool
}

// NewOriginPolicy builds a policy from a list of origins. "*" allows any
// origin; an entry starting with "." matches any subdomain.
func NewOriginPolicy(allowed []string) *OriginPolicy {
	p := &OriginPolicy{}
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			p.allowAll = true
		}
		p.allowed = append(p.allowed, origin)
	}
	return p
}

// Allowed reports whether origin may be served. Requests without an Origin
// header and same-host origins are always allowed.
func (p *OriginPolicy) Allowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.allowAll {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range p.allowed {
		if allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, ".") && strings.HasSuffix(origin, allowed) {
			return true
		}
	}
	return false
}

// CORS sets the cross-origin headers for allowed origins and answers
// preflight requests.
func (p *OriginPolicy) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && p.Allowed(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Trace-ID")
			w.Header().Set("Access-Control-Expose-Headers", "X-Trace-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
