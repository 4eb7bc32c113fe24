package ratelimit

import (
	"net/http"
	"strings"
)

const (
	DefaultIPHeader = "X-Real-IP"
	UnknownIdentity = "unknown"
)

// Identity resolves the key a request is counted under: the direct client IP
// header set by the edge proxy, then the first X-Forwarded-For hop, then
// UnknownIdentity. Every caller lacking both headers shares one bucket.
// The value is not authenticated.
func Identity(r *http.Request, ipHeader string) string {
	if ipHeader == "" {
		ipHeader = DefaultIPHeader
	}
	if ip := strings.TrimSpace(r.Header.Get(ipHeader)); ip != "" {
		return ip
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return UnknownIdentity
}
