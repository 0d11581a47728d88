package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSHandler returns a configured CORS handler for Chi. Preflight requests
// are passed through so routes can answer OPTIONS themselves.
func CORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:     allowedOrigins,
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey", "X-Request-ID"},
		ExposedHeaders:     []string{"X-Request-ID"},
		AllowCredentials:   false,
		MaxAge:             300,
		OptionsPassthrough: true,
	})
}
