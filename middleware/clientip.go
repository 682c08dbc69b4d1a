package middleware

import (
	"net"
	"net/http"
	"strings"

	loginregister "github.com/Anonymus123-11/login-register"
)

// ClientIP attaches the caller's IP to the request context. With trustProxy
// the first X-Forwarded-For entry is used when present; only enable it
// behind a proxy that overwrites the header.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r.RemoteAddr)
			if trustProxy {
				if fwd := forwardedIP(r.Header.Get("X-Forwarded-For")); fwd != "" {
					ip = fwd
				}
			}
			if ip != "" {
				r = r.WithContext(loginregister.WithClientIP(r.Context(), ip))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func forwardedIP(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) == nil {
		return ""
	}
	return first
}
