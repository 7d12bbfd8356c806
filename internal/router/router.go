package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/gearbox-labs/auto-parts-api/internal/api"
	"github.com/gearbox-labs/auto-parts-api/internal/api/auth"
	"github.com/gearbox-labs/auto-parts-api/internal/api/parts"
	"github.com/gearbox-labs/auto-parts-api/internal/api/uploads"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler            *auth.HandlerImpl
	PartsHandler           *parts.HandlerImpl
	UploadsHandler         *uploads.ServeHandler
	AuthenticateMiddleware func(http.Handler) http.Handler
	ClientURL              string
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (requestID, logger, recoverer, timeouts) are applied
// before this router is mounted in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	// The frontend runs on a different origin and authenticates with a
	// cookie, so credentials must be allowed for its origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
			"message": "Auto parts API is running",
		})
	})

	r.Route("/api", func(r chi.Router) {
		// --- Public auth routes ---
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.RegisterHandler)
			r.Post("/auth/login", cfg.AuthHandler.LoginHandler)
			r.Post("/auth/logout", cfg.AuthHandler.LogoutHandler)
		})

		// --- Protected auth routes ---
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Get("/auth/isLoggedIn", cfg.AuthHandler.IsLoggedInHandler)
		})

		// --- Parts: reads are public ---
		r.Group(func(r chi.Router) {
			r.Get("/parts", cfg.PartsHandler.ListHandler)
			r.Get("/parts/stats", cfg.PartsHandler.StatsHandler)
			r.Get("/parts/{id}", cfg.PartsHandler.GetHandler)
		})

		// --- Parts: writes require a session ---
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Post("/parts", cfg.PartsHandler.CreateHandler)
			r.Put("/parts/{id}", cfg.PartsHandler.UpdateHandler)
			r.Delete("/parts/{id}", cfg.PartsHandler.DeleteHandler)
		})
	})

	// Uploaded images are public
	r.Get("/uploads/{name}", cfg.UploadsHandler.ServeImage)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
