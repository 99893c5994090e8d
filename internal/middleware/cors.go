package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// CORS allows cross-origin GET requests from any origin.
func CORS() func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Correlation-ID"}),
		handlers.ExposedHeaders([]string{"X-Correlation-ID", "X-Request-ID"}),
	)
}
