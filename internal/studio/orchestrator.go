// Package studio contains the generation orchestrator: it fans one prompt out
// into up to four concurrent generation calls, each optionally conditioned on
// a reference image, and collects the results in slot order.
package studio

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"catanstudio/internal/imagefetch"
	"catanstudio/internal/providers/image"
)

// ReferenceFetcher resolves a reference image URL into an inline payload.
type ReferenceFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*imagefetch.Payload, error)
}

// BatchRequest describes one user-initiated generate action. Count is assumed
// to be clamped to [1,4] by the caller; the orchestrator issues exactly Count
// calls. ReferenceURLs is positional: slot i uses ReferenceURLs[i] when it is
// present and non-blank, and carries no reference otherwise.
type BatchRequest struct {
	Prompt        string
	Count         int
	ReferenceURLs []string
	RequestID     string
}

// Image is one generated image, returned inline.
type Image struct {
	Data     []byte
	MIMEType string
}

// Orchestrator coordinates a batch of independent generation calls. It keeps
// no state between invocations.
type Orchestrator struct {
	generator image.Generator
	fetcher   ReferenceFetcher
	logger    zerolog.Logger
}

func NewOrchestrator(generator image.Generator, fetcher ReferenceFetcher, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		generator: generator,
		fetcher:   fetcher,
		logger:    logger,
	}
}

// Generate runs the batch: all Count calls are dispatched concurrently and the
// batch completes only when every call has. Failure semantics are
// all-or-nothing: the first error wins, the group context cancels in-flight
// siblings, and no partial results are returned. On success the images come
// back in slot order regardless of completion order.
func (o *Orchestrator) Generate(ctx context.Context, req BatchRequest) ([]Image, error) {
	batchID := req.RequestID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	o.logger.Info().
		Str("batch_id", batchID).
		Int("count", req.Count).
		Int("reference_slots", countNonBlank(req.ReferenceURLs)).
		Msg("studio: starting generation batch")

	results := make([]Image, req.Count)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < req.Count; i++ {
		slot := i
		var refURL string
		if slot < len(req.ReferenceURLs) {
			refURL = strings.TrimSpace(req.ReferenceURLs[slot])
		}

		g.Go(func() error {
			call := image.GenerateRequest{
				Prompt:    req.Prompt,
				RequestID: batchID,
				Slot:      slot + 1,
			}

			if refURL != "" {
				payload, err := o.fetcher.Fetch(ctx, refURL)
				if err != nil {
					return &ReferenceError{Slot: slot + 1, URL: refURL, Err: err}
				}
				call.Reference = &image.Reference{
					Data:     payload.Data,
					MIMEType: payload.MIMEType,
				}
			}

			img, err := o.generator.Generate(ctx, call)
			if err != nil {
				return &GenerationError{Slot: slot + 1, Err: err}
			}

			results[slot] = Image{Data: img.Data, MIMEType: img.MIMEType}
			o.logger.Debug().
				Str("batch_id", batchID).
				Int("slot", slot+1).
				Bool("referenced", call.Reference != nil).
				Msg("studio: slot generated")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Warn().
			Str("batch_id", batchID).
			Err(err).
			Msg("studio: generation batch failed")
		return nil, err
	}

	o.logger.Info().
		Str("batch_id", batchID).
		Int("count", len(results)).
		Msg("studio: generation batch complete")
	return results, nil
}

func countNonBlank(urls []string) int {
	n := 0
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			n++
		}
	}
	return n
}
