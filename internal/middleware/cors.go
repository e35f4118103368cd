package middleware

import (
	"net/http"

	"keyflow-backend/internal/config"

	"github.com/rs/cors"
)

// NewCORS builds the cross-origin handler. Content-Disposition is exposed so
// the frontend can read report filenames off download responses.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CorsAllowedOrigins,
		AllowedMethods:   cfg.Server.CorsAllowedMethods,
		AllowedHeaders:   cfg.Server.CorsAllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	})

	return c.Handler
}
