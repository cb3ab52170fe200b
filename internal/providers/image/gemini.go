package image

import (
	"context"

	"catanstudio/internal/providers/genai"
)

// GeminiGenerator adapts the Gemini client to the Generator contract.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Image, error) {
	var ref *genai.ReferenceImage
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		ref = &genai.ReferenceImage{
			Data:     req.Reference.Data,
			MIMEType: req.Reference.MIMEType,
		}
	}

	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		Prompt:    req.Prompt,
		Reference: ref,
		RequestID: req.RequestID,
		Slot:      req.Slot,
	})
	if err != nil {
		return nil, err
	}
	return &Image{Data: asset.Data, MIMEType: asset.MIMEType}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
