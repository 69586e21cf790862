// Package engine defines the boundary between the ensemble service and
// the per-fold model servers that produce prediction tensors.
package engine

import (
	"context"

	"github.com/yungbote/segbridge/internal/tensor"
)

// Engine runs inference for one or more trained segmentation models.
type Engine interface {
	// Infer runs the named model on input and returns its raw prediction.
	// The returned tensor is owned by the caller.
	Infer(ctx context.Context, model string, input *tensor.Tensor) (*tensor.Tensor, error)

	// Health reports whether the engine can currently serve inference.
	Health(ctx context.Context) error
}
