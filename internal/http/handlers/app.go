package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"catanstudio/internal/infra"
	"catanstudio/internal/studio"
)

// BatchGenerator is the slice of the orchestrator the handlers need.
type BatchGenerator interface {
	Generate(ctx context.Context, req studio.BatchRequest) ([]studio.Image, error)
}

// App bundles handler dependencies.
type App struct {
	Config *infra.Config
	Logger infra.Logger
	Studio BatchGenerator
}

func NewApp(cfg *infra.Config, logger infra.Logger, batches BatchGenerator) *App {
	return &App{Config: cfg, Logger: logger, Studio: batches}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}
