package ingest

import (
	"net"
	"net/http"
	"strings"
)

// DefaultIPHeaders is the default client IP header precedence:
// forwarded-for first hop, then real-ip, then CDN and platform headers.
// Deployments behind other proxies should configure their own order,
// since trusting the wrong header enables IP spoofing.
var DefaultIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"X-Vercel-Forwarded-For",
}

// ExtractClientIP resolves the client IP from request headers using the
// given precedence. The first syntactically valid IPv4 wins; an empty
// string means no resolvable address, and geolocation is skipped.
func ExtractClientIP(headers http.Header, precedence []string) string {
	if len(precedence) == 0 {
		precedence = DefaultIPHeaders
	}
	for _, name := range precedence {
		value := headers.Get(name)
		if value == "" {
			continue
		}
		// Forwarded-for style headers list hops; the first is the client.
		first := value
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			first = value[:idx]
		}
		candidate := strings.TrimSpace(first)
		if isIPv4(candidate) {
			return candidate
		}
	}
	return ""
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
