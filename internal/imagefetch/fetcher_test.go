package imagefetch

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

func TestFetchViaRelay(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("direct fetch should not be attempted when the relay succeeds")
	}))
	defer origin.Close()

	var relayed string
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayed = r.URL.Query().Get("url")
		_, _ = w.Write(pngBytes)
	}))
	defer relay.Close()

	f := NewFetcher(Options{ProxyBaseURL: relay.URL + "/raw?url="})
	payload, err := f.Fetch(context.Background(), origin.URL+"/board.png")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if payload.MIMEType != "image/png" {
		t.Fatalf("unexpected mime type: %s", payload.MIMEType)
	}
	if len(payload.Data) != len(pngBytes) {
		t.Fatalf("unexpected payload size: %d", len(payload.Data))
	}
	if relayed != origin.URL+"/board.png" {
		t.Fatalf("relay did not receive the original URL: %q", relayed)
	}
}

func TestFetchFallsBackToDirect(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes)
	}))
	defer origin.Close()

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer relay.Close()

	f := NewFetcher(Options{ProxyBaseURL: relay.URL + "/raw?url="})
	payload, err := f.Fetch(context.Background(), origin.URL+"/tile.png")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if payload.MIMEType != "image/png" {
		t.Fatalf("unexpected mime type: %s", payload.MIMEType)
	}
}

func TestFetchBothPathsFail(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer relay.Close()

	f := NewFetcher(Options{ProxyBaseURL: relay.URL + "/raw?url="})
	_, err := f.Fetch(context.Background(), origin.URL+"/private.png")
	if err == nil {
		t.Fatal("expected error when both attempts fail")
	}
	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if fetchErr.URL != origin.URL+"/private.png" {
		t.Fatalf("error does not carry the URL: %q", fetchErr.URL)
	}
	if !strings.Contains(err.Error(), "direct link") {
		t.Fatalf("error should suggest the direct-link workaround: %v", err)
	}
}

func TestFetchRejectsNonImage(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>not an image</body></html>"))
	}))
	defer origin.Close()

	f := NewFetcher(Options{})
	_, err := f.Fetch(context.Background(), origin.URL+"/page")
	if err == nil {
		t.Fatal("expected error for non-image payload")
	}
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestFetchNonImageViaRelayFallsBackThenFails(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{\"error\":\"denied\"}"))
	}))
	defer relay.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer origin.Close()

	f := NewFetcher(Options{ProxyBaseURL: relay.URL + "/raw?url="})
	_, err := f.Fetch(context.Background(), origin.URL+"/thing")
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestFetchEnforcesSizeCap(t *testing.T) {
	big := make([]byte, 0, 2048)
	big = append(big, pngBytes...)
	for len(big) < 2048 {
		big = append(big, 0)
	}
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(big)
	}))
	defer origin.Close()

	f := NewFetcher(Options{MaxBytes: 1024})
	_, err := f.Fetch(context.Background(), origin.URL+"/huge.png")
	if err == nil {
		t.Fatal("expected error when payload exceeds the size cap")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchDecodesDataURL(t *testing.T) {
	f := NewFetcher(Options{})
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	payload, err := f.Fetch(context.Background(), raw)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if payload.MIMEType != "image/png" {
		t.Fatalf("unexpected mime type: %s", payload.MIMEType)
	}
	if len(payload.Data) != len(pngBytes) {
		t.Fatalf("unexpected payload size: %d", len(payload.Data))
	}
}

func TestFetchDataURLEnforcesSizeCap(t *testing.T) {
	big := make([]byte, 0, 4096)
	big = append(big, pngBytes...)
	for len(big) < 4096 {
		big = append(big, 0)
	}
	f := NewFetcher(Options{MaxBytes: 1024})
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString(big)
	_, err := f.Fetch(context.Background(), raw)
	if err == nil {
		t.Fatal("expected error when data URL payload exceeds the size cap")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchRejectsNonImageDataURL(t *testing.T) {
	f := NewFetcher(Options{})
	raw := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello there, settler"))
	if _, err := f.Fetch(context.Background(), raw); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	f := NewFetcher(Options{})
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
	if _, err := f.Fetch(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}
