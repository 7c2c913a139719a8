package middleware

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
)

// CORS allows the web client origins to call the API with credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization", legacyEmailHeader, "X-Client-Secret", RequestIDHeader}),
		gorillahandlers.ExposedHeaders([]string{RequestIDHeader}),
		gorillahandlers.AllowCredentials(),
	)
}
