package image

import "context"

// Reference describes an inline conditioning image attached to one request.
type Reference struct {
	Data     []byte
	MIMEType string
}

// GenerateRequest describes a normalized single-image request passed to any
// image provider. One request produces at most one image. Slot is the 1-based
// position of the request within its batch.
type GenerateRequest struct {
	Prompt    string
	Reference *Reference
	RequestID string
	Slot      int
}

// Image represents one generated image.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Image, error)
}
