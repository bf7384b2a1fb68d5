// Package http provides net/http middleware shared by the storefront endpoints.
package http

import (
	"net/http"
	"strings"
)

// CORSConfig configures the CORS middleware
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API. "*" (the default) allows any.
	AllowedOrigins []string

	// AllowedMethods defaults to GET, POST, OPTIONS
	AllowedMethods []string

	// AllowedHeaders defaults to Content-Type
	AllowedHeaders []string
}

// CORS sets cross-origin headers on every response and answers preflight
// requests with 204 before they reach the handler.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := config.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := config.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type"}
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")

	wildcard := false
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch origin := r.Header.Get("Origin"); {
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
