// Package imagefetch resolves user-supplied image URLs into request-ready
// payloads. Many image hosts refuse cross-origin requests, so the fetcher goes
// through a CORS relay first and falls back to a direct GET of the same URL.
package imagefetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotImage signals that a fetch succeeded but the payload did not sniff as
// an image. Wrapped inside *Error so callers can distinguish it with errors.Is.
var ErrNotImage = errors.New("fetched content is not an image")

// Error describes a failed reference image fetch. Both attempts are recorded so
// the user-facing message can explain the likely cause.
type Error struct {
	URL       string
	ProxyErr  error
	DirectErr error
}

func (e *Error) Error() string {
	return fmt.Sprintf("could not load image from %s (a direct link to an image file usually works when the host blocks cross-origin access): proxy: %v; direct: %v",
		e.URL, e.ProxyErr, e.DirectErr)
}

func (e *Error) Unwrap() error { return e.DirectErr }

// Is reports ErrNotImage when either attempt rejected the payload type, so the
// taxonomy survives the proxy/direct aggregation.
func (e *Error) Is(target error) bool {
	if target == ErrNotImage {
		return errors.Is(e.ProxyErr, ErrNotImage) || errors.Is(e.DirectErr, ErrNotImage)
	}
	return false
}

// Payload holds fetched image bytes alongside the MIME type sniffed from them.
type Payload struct {
	Data     []byte
	MIMEType string
}

// Options configures a Fetcher.
type Options struct {
	// ProxyBaseURL is the CORS relay prefix; the raw URL is query-escaped and
	// appended. Empty disables the relay attempt.
	ProxyBaseURL string
	// MaxBytes caps a single download. Zero means the default of 15 MiB.
	MaxBytes   int64
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Fetcher retrieves image bytes with a relay-first, direct-second strategy.
// It keeps no state between calls and never caches fetched bytes.
type Fetcher struct {
	proxyBaseURL string
	maxBytes     int64
	httpClient   *http.Client
	logger       zerolog.Logger
}

const defaultMaxBytes = 15 << 20

// NewFetcher constructs a Fetcher with sane defaults. A nil HTTP client gets a
// reusable one with a timeout.
func NewFetcher(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Fetcher{
		proxyBaseURL: opts.ProxyBaseURL,
		maxBytes:     maxBytes,
		httpClient:   client,
		logger:       logger,
	}
}

// Fetch downloads the image at rawURL. The relay is tried first; on any relay
// failure (transport error, bad status, non-image payload) the same URL is
// fetched directly. There is exactly one fallback and no retry beyond it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Payload, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, &Error{URL: rawURL, DirectErr: errors.New("empty URL")}
	}

	// Recycled gallery images arrive as data: URLs; decode them inline
	// instead of going over the network.
	if strings.HasPrefix(rawURL, "data:") {
		payload, err := f.decodeDataURL(rawURL)
		if err != nil {
			return nil, &Error{URL: rawURL, DirectErr: err}
		}
		return payload, nil
	}

	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, &Error{URL: rawURL, DirectErr: fmt.Errorf("invalid URL: %w", err)}
	}

	var proxyErr error
	if f.proxyBaseURL != "" {
		payload, err := f.get(ctx, f.proxyBaseURL+url.QueryEscape(rawURL))
		if err == nil {
			return payload, nil
		}
		proxyErr = err
		f.logger.Debug().Str("url", rawURL).Err(err).Msg("imagefetch: relay attempt failed, trying direct")
	} else {
		proxyErr = errors.New("relay disabled")
	}

	payload, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, ProxyErr: proxyErr, DirectErr: err}
	}
	return payload, nil
}

func (f *Fetcher) decodeDataURL(rawURL string) (*Payload, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data URL must be base64 encoded")
	}
	// The same cap as network fetches, checked before decoding so an
	// oversized payload is rejected without being materialized.
	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", f.maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w (detected %s)", ErrNotImage, mimeType)
	}
	return &Payload{Data: data, MIMEType: mimeType}, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty response body")
	}

	// Sniff the payload rather than trusting Content-Type; relays often
	// relabel responses as application/octet-stream.
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w (detected %s)", ErrNotImage, mimeType)
	}

	return &Payload{Data: data, MIMEType: mimeType}, nil
}
