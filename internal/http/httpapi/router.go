package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/http/handlers"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.AllowedOrigins),
		middleware.ClientMeta(app.GeoLookup),
		middleware.OwnerKey(app.Config.JWTSecret),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/portraits", func(r chi.Router) {
		r.Post("/", app.Submit)
		r.Post("/pair", app.SubmitPair)
		r.Get("/limit", app.Remaining)
		r.Get("/{job_id}", app.Status)
		r.Get("/{job_id}/download", app.Download)
	})

	return r
}
