// Package generate produces the poem and portrait for a profile by calling a
// text/image generation provider.
package generate

import (
	"context"
	"fmt"

	"github.com/hpungsan/muse/internal/creation"
)

// Subject identifies who a generation is for.
type Subject struct {
	Name        string
	Designation string
	Company     string
}

// TextRequest asks a provider for short text.
type TextRequest struct {
	System    string
	Prompt    string
	MaxTokens int
	Subject   Subject
}

// ImageRequest asks a provider for one image. Main is always a validated
// reference; Auxiliary holds at most two extra hints.
type ImageRequest struct {
	Prompt    string
	Style     creation.Style
	Main      creation.Image
	Auxiliary []creation.Image
	Subject   Subject
}

// ReferenceCount is the number of reference images attached to the request.
func (r ImageRequest) ReferenceCount() int {
	if r.Main == "" {
		return len(r.Auxiliary)
	}
	return 1 + len(r.Auxiliary)
}

// Provider is a text and image generation backend.
// GenerateImage returns an image reference: an https URL or a data URI.
type Provider interface {
	Name() string
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// StatusError is a non-success response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}
