// Package mock provides a deterministic in-process engine. Outputs are a
// pure function of the model name and the input tensor, so tests and local
// development get stable, distinct per-fold predictions without a model
// server.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/tensor"
)

type Engine struct {
	// Channels is the number of output channels; predictions are
	// normalized so channel values sum to 1 per voxel.
	Channels int
}

func New() *Engine {
	return &Engine{Channels: 2}
}

func (e *Engine) Infer(ctx context.Context, model string, input *tensor.Tensor) (*tensor.Tensor, error) {
	_ = ctx
	if input == nil || input.Rank() < 2 {
		return nil, fmt.Errorf("mock: input must have shape [B, C, ...]: %w", pkgerrors.ErrInvalidArgument)
	}
	chans := e.Channels
	if chans < 1 {
		chans = 2
	}

	outShape := input.Shape()
	outShape[1] = chans
	out, err := tensor.Zeros(outShape)
	if err != nil {
		return nil, err
	}

	seed := seedFor(model, input)
	batch := outShape[0]
	batchStride := out.Len() / batch
	chanStride := batchStride / chans

	dst := out.Data()
	for b := 0; b < batch; b++ {
		for s := 0; s < chanStride; s++ {
			base := b*batchStride + s
			var sum float64
			for c := 0; c < chans; c++ {
				v := unit(seed, uint64(base+c*chanStride))
				dst[base+c*chanStride] = float32(v)
				sum += v
			}
			for c := 0; c < chans; c++ {
				dst[base+c*chanStride] = float32(float64(dst[base+c*chanStride]) / sum)
			}
		}
	}
	return out, nil
}

func (e *Engine) Health(ctx context.Context) error {
	_ = ctx
	return nil
}

// seedFor folds the model name and input content into one 64-bit seed.
func seedFor(model string, input *tensor.Tensor) uint64 {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte("\n"))
	h.Write([]byte(fmt.Sprint(input.Shape())))
	var buf [4]byte
	for _, v := range input.Data() {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

// unit maps (seed, index) to a value in (0, 1] via splitmix64.
func unit(seed, index uint64) float64 {
	z := seed + index*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return float64(z%10_000)/10_000.0 + 1.0/10_000.0
}
