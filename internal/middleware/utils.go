package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GetClientIP returns the host part of RemoteAddr. When trustProxyHeaders
// is set, the first valid address from X-Forwarded-For, then X-Real-IP,
// takes precedence.
func GetClientIP(r *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")

			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}

		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}

// writeJSONError writes the API error envelope from middleware, which cannot
// depend on the rest adapter.
func writeJSONError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	body := map[string]string{"error": code, "message": message}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode error response", zap.Error(err))
	}
}

func strconvSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Seconds()))
}
