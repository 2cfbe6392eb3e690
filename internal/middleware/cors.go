package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the browser front end to call the API from another origin.
var CORS func(http.Handler) http.Handler = cors.Handler(cors.Options{
	AllowedOrigins:   []string{"https://*", "http://*"},
	AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
	ExposedHeaders:   []string{"X-Request-ID"},
	AllowCredentials: false,
	MaxAge:           300,
})
