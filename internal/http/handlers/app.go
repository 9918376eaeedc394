package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/infra"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/middleware"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/portrait"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/ratelimit"
)

// AssetGateway is the slice of the asset store the handlers need: deriving
// public URLs for job views and reading bytes back for downloads.
type AssetGateway interface {
	URL(assetID string) string
	Read(ctx context.Context, assetID string) ([]byte, string, error)
}

// App is the handler container; one instance serves all routes.
type App struct {
	Config    *infra.Config
	Logger    zerolog.Logger
	Portraits *portrait.Service
	Limiter   *ratelimit.Limiter
	Assets    AssetGateway
	GeoLookup middleware.CountryLookup
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
