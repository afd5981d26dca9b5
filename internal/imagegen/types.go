// Package imagegen adapts job inputs to the visual provider: it prepares the
// source image, builds the provider request and decodes the returned image.
package imagegen

import (
	"context"
	"errors"

	"aigc/internal/domain"
)

// ErrCredentialsNotConfigured is the one provider condition the processor may
// turn into a simulated success.
var ErrCredentialsNotConfigured = errors.New("imagegen: provider credentials not configured")

// SourceImage is a prepared, transport-ready source.
type SourceImage struct {
	Data       []byte
	Base64     string
	MIMEType   string
	Width      int
	Height     int
	Downscaled bool
}

// Result is a decoded provider output, normalized to PNG.
type Result struct {
	PNG       []byte
	Base64    string
	Width     int
	Height    int
	RequestID string
}

// Transformer runs one job input against the provider.
type Transformer interface {
	Transform(ctx context.Context, in domain.JobInput, source SourceImage) (*Result, error)
}
