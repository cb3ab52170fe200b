package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"catanstudio/internal/http/handlers"
	"catanstudio/internal/http/httpapi"
	"catanstudio/internal/imagefetch"
	"catanstudio/internal/infra"
	"catanstudio/internal/providers/genai"
	"catanstudio/internal/providers/image"
	"catanstudio/internal/studio"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	client, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set; serving synthetic placeholder images")
	}

	fetcher := imagefetch.NewFetcher(imagefetch.Options{
		ProxyBaseURL: cfg.ImageProxyBaseURL,
		MaxBytes:     cfg.FetchMaxBytes,
		HTTPClient:   &http.Client{Timeout: cfg.FetchTimeout},
		Logger:       &logger,
	})

	batches := studio.NewOrchestrator(image.NewGeminiGenerator(client), fetcher, logger)

	app := handlers.NewApp(cfg, logger, batches)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("model", client.Model()).Msgf("Catan Studio listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
