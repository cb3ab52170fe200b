package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"catanstudio/internal/infra"
	"catanstudio/internal/studio"
)

type stubStudio struct {
	mu       sync.Mutex
	requests []studio.BatchRequest
	generate func(ctx context.Context, req studio.BatchRequest) ([]studio.Image, error)
}

func (s *stubStudio) Generate(ctx context.Context, req studio.BatchRequest) ([]studio.Image, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.generate != nil {
		return s.generate(ctx, req)
	}
	images := make([]studio.Image, req.Count)
	for i := range images {
		images[i] = studio.Image{Data: []byte{byte(i)}, MIMEType: "image/png"}
	}
	return images, nil
}

func newTestApp(batches BatchGenerator) *App {
	cfg := &infra.Config{}
	return NewApp(cfg, zerolog.Nop(), batches)
}

func postGenerate(t *testing.T, app *App, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	app.ImagesGenerate(rec, req)
	return rec
}

func TestImagesGenerateSuccess(t *testing.T) {
	st := &stubStudio{}
	app := newTestApp(st)

	rec := postGenerate(t, app, `{"prompt":"a fishing village","count":3,"reference_urls":["","https://example.com/r.png",""]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp imageGenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(resp.Images))
	}
	for i, img := range resp.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			t.Fatalf("image %d not base64: %v", i, err)
		}
		if len(data) != 1 || data[0] != byte(i) {
			t.Fatalf("image %d out of slot order: %v", i, data)
		}
		if img.MIMEType != "image/png" {
			t.Fatalf("image %d mime mismatch: %s", i, img.MIMEType)
		}
	}

	if len(st.requests) != 1 {
		t.Fatalf("expected one batch, got %d", len(st.requests))
	}
	got := st.requests[0]
	if got.Count != 3 || got.Prompt != "a fishing village" {
		t.Fatalf("batch request mismatch: %+v", got)
	}
	if len(got.ReferenceURLs) != 3 || got.ReferenceURLs[1] != "https://example.com/r.png" {
		t.Fatalf("reference urls mismatch: %v", got.ReferenceURLs)
	}
}

func TestImagesGenerateClampsCount(t *testing.T) {
	cases := map[int]int{0: 1, -2: 1, 1: 1, 4: 4, 9: 4}
	for requested, want := range cases {
		st := &stubStudio{}
		app := newTestApp(st)
		body, _ := json.Marshal(imageGenerateRequest{Prompt: "p", Count: requested})
		rec := postGenerate(t, app, string(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("count=%d: status %d", requested, rec.Code)
		}
		if st.requests[0].Count != want {
			t.Fatalf("count=%d: clamped to %d, want %d", requested, st.requests[0].Count, want)
		}
	}
}

func TestImagesGenerateRejectsBlankPrompt(t *testing.T) {
	app := newTestApp(&stubStudio{})
	rec := postGenerate(t, app, `{"prompt":"   ","count":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestImagesGenerateRejectsMalformedBody(t *testing.T) {
	app := newTestApp(&stubStudio{})
	rec := postGenerate(t, app, `{"prompt":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestImagesGenerateReferenceFailure(t *testing.T) {
	st := &stubStudio{
		generate: func(ctx context.Context, req studio.BatchRequest) ([]studio.Image, error) {
			return nil, &studio.ReferenceError{Slot: 2, URL: "https://blocked.example.com/x.png", Err: errors.New("both fetch attempts failed")}
		},
	}
	app := newTestApp(st)
	rec := postGenerate(t, app, `{"prompt":"p","count":2,"reference_urls":["","https://blocked.example.com/x.png"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "slot 2") {
		t.Fatalf("error should name the slot: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "reference_fetch_failed") {
		t.Fatalf("error code missing: %s", rec.Body.String())
	}
}

func TestImagesGenerateGenerationFailure(t *testing.T) {
	st := &stubStudio{
		generate: func(ctx context.Context, req studio.BatchRequest) ([]studio.Image, error) {
			return nil, &studio.GenerationError{Slot: 3, Err: errors.New("no image content returned")}
		},
	}
	app := newTestApp(st)
	rec := postGenerate(t, app, `{"prompt":"p","count":4}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "image 3 could not be generated") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestImagesGenerateUnknownFailure(t *testing.T) {
	st := &stubStudio{
		generate: func(ctx context.Context, req studio.BatchRequest) ([]studio.Image, error) {
			return nil, errors.New("wire tripped")
		},
	}
	app := newTestApp(st)
	rec := postGenerate(t, app, `{"prompt":"p"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "wire tripped") {
		t.Fatalf("internal error detail leaked: %s", rec.Body.String())
	}
}
