package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RateLimiter is the minimal interface required to guard upload endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// uploadScope keys the upload limiter separately from any other limited route.
const uploadScope = "upload"

// rejectIfLimited responds 429 and reports true when the caller is over its limit.
func rejectIfLimited(limiter RateLimiter, trustProxy bool, w http.ResponseWriter, r *http.Request, scope string) bool {
	if limiter == nil {
		return false
	}
	if limiter.Allow(rateLimitKey(r, scope, trustProxy)) {
		return false
	}
	w.Header().Set("Retry-After", "60")
	respondJSON(r.Context(), w, http.StatusTooManyRequests, envelope{Message: messageError, Error: "too many uploads, try again later"})
	return true
}

func rateLimitKey(r *http.Request, scope string, trustProxy bool) string {
	ip := clientIP(r, trustProxy)
	if scope == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", scope, ip)
}

// clientIP returns the caller's address. X-Forwarded-For is only honored
// behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
