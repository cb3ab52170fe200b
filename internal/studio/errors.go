package studio

import "fmt"

// ReferenceError reports that the reference image for a slot could not be
// loaded. Slot is 1-based, matching what the user sees in the studio.
type ReferenceError struct {
	Slot int
	URL  string
	Err  error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("could not load the reference image for slot %d: %v", e.Slot, e.Err)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// GenerationError reports that the remote service failed to produce the image
// for a slot.
type GenerationError struct {
	Slot int
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("image %d could not be generated: %v", e.Slot, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
