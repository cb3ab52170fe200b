package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"catanstudio/internal/http/handlers"
	"catanstudio/internal/middleware"
	"catanstudio/internal/web"
)

// NewRouter assembles the studio's routes: the generation API, liveness, and
// the embedded UI at the root.
func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(app.Config.AllowedOrigins))

	r.Get("/healthz", app.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Each generate call may hold four upstream requests open; the rate
		// limit keeps one client from monopolizing upstream capacity.
		r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)).
			Post("/images/generate", app.ImagesGenerate)
	})

	r.Handle("/*", web.Handler())

	return r
}
