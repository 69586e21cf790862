// Package postprocess converts raw model outputs into the representations
// the reducers expect: probabilities via sigmoid or softmax, then discrete
// labels via thresholding, argmax or one-hot expansion. Every transform
// returns a new tensor and leaves its input untouched.
package postprocess

import (
	"fmt"
	"math"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/tensor"
)

// Sigmoid applies the logistic function elementwise.
func Sigmoid(t *tensor.Tensor) *tensor.Tensor {
	out := t.Clone()
	data := out.Data()
	for i, v := range data {
		data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
	return out
}

// Softmax normalizes over the channel axis (dimension 1), with the usual
// max subtraction for stability. Requires rank >= 2.
func Softmax(t *tensor.Tensor) (*tensor.Tensor, error) {
	if t.Rank() < 2 {
		return nil, fmt.Errorf("postprocess: softmax needs a channel axis, got rank %d: %w", t.Rank(), pkgerrors.ErrInvalidArgument)
	}
	batch := t.Dim(0)
	chans := t.Dim(1)
	batchStride := t.Len() / batch
	chanStride := batchStride / chans

	out := t.Clone()
	src := t.Data()
	dst := out.Data()
	for b := 0; b < batch; b++ {
		for s := 0; s < chanStride; s++ {
			base := b*batchStride + s
			max := float64(src[base])
			for c := 1; c < chans; c++ {
				if v := float64(src[base+c*chanStride]); v > max {
					max = v
				}
			}
			var sum float64
			for c := 0; c < chans; c++ {
				e := math.Exp(float64(src[base+c*chanStride]) - max)
				dst[base+c*chanStride] = float32(e)
				sum += e
			}
			for c := 0; c < chans; c++ {
				dst[base+c*chanStride] = float32(float64(dst[base+c*chanStride]) / sum)
			}
		}
	}
	return out, nil
}

// Threshold maps values >= thresh to 1 and the rest to 0.
func Threshold(t *tensor.Tensor, thresh float32) *tensor.Tensor {
	out := t.Clone()
	data := out.Data()
	for i, v := range data {
		if v >= thresh {
			data[i] = 1
		} else {
			data[i] = 0
		}
	}
	return out
}

// ArgMax collapses the channel axis to a single channel of class indexes.
// Ties pick the smallest channel index.
func ArgMax(t *tensor.Tensor) (*tensor.Tensor, error) {
	if t.Rank() < 2 {
		return nil, fmt.Errorf("postprocess: argmax needs a channel axis, got rank %d: %w", t.Rank(), pkgerrors.ErrInvalidArgument)
	}
	batch := t.Dim(0)
	chans := t.Dim(1)
	batchStride := t.Len() / batch
	chanStride := batchStride / chans

	outShape := t.Shape()
	outShape[1] = 1
	out, err := tensor.Zeros(outShape)
	if err != nil {
		return nil, err
	}
	src := t.Data()
	dst := out.Data()
	for b := 0; b < batch; b++ {
		for s := 0; s < chanStride; s++ {
			base := b*batchStride + s
			bestC := 0
			bestV := src[base]
			for c := 1; c < chans; c++ {
				if v := src[base+c*chanStride]; v > bestV {
					bestC, bestV = c, v
				}
			}
			dst[b*chanStride+s] = float32(bestC)
		}
	}
	return out, nil
}

// OneHot expands a single-channel class-index tensor into numClasses
// binary channels.
func OneHot(t *tensor.Tensor, numClasses int) (*tensor.Tensor, error) {
	if numClasses < 1 {
		return nil, fmt.Errorf("postprocess: one-hot needs at least one class, got %d: %w", numClasses, pkgerrors.ErrInvalidArgument)
	}
	if t.Rank() < 2 || t.Dim(1) != 1 {
		return nil, fmt.Errorf("postprocess: one-hot input must be single-channel, got %v: %w", t.Shape(), pkgerrors.ErrInvalidArgument)
	}
	batch := t.Dim(0)
	batchStride := t.Len() / batch

	outShape := t.Shape()
	outShape[1] = numClasses
	out, err := tensor.Zeros(outShape)
	if err != nil {
		return nil, err
	}
	src := t.Data()
	dst := out.Data()
	for b := 0; b < batch; b++ {
		for s := 0; s < batchStride; s++ {
			v := float64(src[b*batchStride+s])
			if math.IsNaN(v) || v != math.Trunc(v) || v < 0 || int(v) >= numClasses {
				return nil, fmt.Errorf("postprocess: value %v is not a class index below %d: %w", v, numClasses, pkgerrors.ErrInvalidArgument)
			}
			dst[(b*numClasses+int(v))*batchStride+s] = 1
		}
	}
	return out, nil
}
