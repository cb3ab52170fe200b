package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"catanstudio/internal/middleware"
	"catanstudio/internal/studio"
)

// MaxBatchSize is the most images one generate action may request.
const MaxBatchSize = 4

type imageGenerateRequest struct {
	Prompt        string   `json:"prompt"`
	Count         int      `json:"count"`
	ReferenceURLs []string `json:"reference_urls"`
}

type generatedImage struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

type imageGenerateResponse struct {
	Images []generatedImage `json:"images"`
}

// ImagesGenerate runs one synchronous generation batch. The handler owns the
// count clamp to [1,MaxBatchSize]; the orchestrator trusts it.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > MaxBatchSize {
		req.Count = MaxBatchSize
	}
	if len(req.ReferenceURLs) > MaxBatchSize {
		req.ReferenceURLs = req.ReferenceURLs[:MaxBatchSize]
	}

	images, err := a.Studio.Generate(r.Context(), studio.BatchRequest{
		Prompt:        req.Prompt,
		Count:         req.Count,
		ReferenceURLs: req.ReferenceURLs,
		RequestID:     middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		a.replyGenerateError(w, err)
		return
	}

	resp := imageGenerateResponse{Images: make([]generatedImage, len(images))}
	for i, img := range images {
		resp.Images[i] = generatedImage{
			Data:     base64.StdEncoding.EncodeToString(img.Data),
			MIMEType: img.MIMEType,
		}
	}
	a.json(w, http.StatusOK, resp)
}

// replyGenerateError maps the batch error taxonomy onto HTTP statuses. The
// typed errors already carry user-facing, slot-attributed messages.
func (a *App) replyGenerateError(w http.ResponseWriter, err error) {
	var refErr *studio.ReferenceError
	if errors.As(err, &refErr) {
		a.error(w, http.StatusUnprocessableEntity, "reference_fetch_failed", refErr.Error())
		return
	}
	var genErr *studio.GenerationError
	if errors.As(err, &genErr) {
		a.error(w, http.StatusBadGateway, "generation_failed", genErr.Error())
		return
	}
	a.Logger.Error().Err(err).Msg("handlers: unexpected generation failure")
	a.error(w, http.StatusInternalServerError, "internal", "something went wrong, please try again")
}
