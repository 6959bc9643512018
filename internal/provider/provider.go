// Package provider defines the boundary to the face embedding model and the
// illumination normalizer, and ships an HTTP client for a DeepFace
// sidecar.
package provider

import (
	"context"

	"github.com/fairface-insight/fairaudit/internal/api"
	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
)

// ErrNoFace is returned by an Embedder when the image holds no detectable
// face.
var ErrNoFace = apperrors.ErrNoFaceDetected

// Result is one embedding call. Embedding is nil when the provider could
// not produce a vector. Detected reflects the detector confidence gate.
type Result struct {
	Embedding   []float64
	Detected    bool
	Confidence  float64
	BoundingBox *api.BoundingBox
	Backend     string
}

// Embedder turns an image on disk into a face embedding.
type Embedder interface {
	Embed(ctx context.Context, imagePath string) (*Result, error)
}

// Normalizer buckets an image by luminance and may produce a corrected
// variant. correctedPath is empty when no variant was written.
type Normalizer interface {
	Normalize(ctx context.Context, imagePath string) (bucket string, correctedPath string, err error)
}

// BucketUnknown is reported when no normalizer is configured.
const BucketUnknown = "unknown"

// Passthrough is a Normalizer that never corrects and reports every image
// as BucketUnknown.
type Passthrough struct{}

func (Passthrough) Normalize(ctx context.Context, imagePath string) (string, string, error) {
	return BucketUnknown, "", nil
}
