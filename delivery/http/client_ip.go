package http

import (
	"net"
	"net/http"
	"strings"
)

// clientIP extracts the originating client address for plain net/http
// requests: first X-Forwarded-For hop when present, else the RemoteAddr
// host. Gin handlers use c.ClientIP, which applies the same rules with
// trusted-proxy checks.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
