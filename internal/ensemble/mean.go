// Package ensemble combines aligned per-model prediction tensors into one
// aggregated prediction. It implements the two reductions used for k-fold
// segmentation ensembles: a weighted elementwise mean over the ensemble
// axis and a majority vote over discretized predictions. Both reducers are
// pure: inputs are never mutated and a fresh output tensor is returned.
//
// Callers that fan out inference across goroutines must collect all N
// member outputs for a sample before invoking a reducer; the reducers
// provide no synchronization of their own.
package ensemble

import (
	"github.com/yungbote/segbridge/internal/tensor"
)

// Mean computes the elementwise arithmetic mean of the collection across
// the ensemble axis. Accumulation happens in float64.
//
// Weights are optional. When present, the accepted shapes form a closed
// set over a collection of N members with member shape [B, C, spatial...]:
//
//	[N]       one weight per member, applied uniformly
//	[N, B]    one weight per member per batch item
//	[N, B, C] one weight per member per batch item per channel
//
// The result is sum(w_i * x_i) / sum(w_i) per element. Any other weight
// rank or dimension mismatch is rejected with InvalidWeightShapeError. A
// zero weight sum over any broadcast cell is rejected with
// DegenerateWeightsError instead of producing NaN.
func Mean(preds []*tensor.Tensor, weights *tensor.Tensor) (*tensor.Tensor, error) {
	base, err := checkAligned(preds)
	if err != nil {
		return nil, err
	}
	if weights == nil {
		return uniformMean(preds, base)
	}
	return weightedMean(preds, weights, base)
}

// checkAligned verifies every member shares member 0's shape.
func checkAligned(preds []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(preds) == 0 {
		return nil, ErrEmptyCollection
	}
	base := preds[0]
	for i, p := range preds[1:] {
		if !base.SameShape(p) {
			return nil, &ShapeMismatchError{Member: i + 1, Want: base.Shape(), Got: p.Shape()}
		}
	}
	return base, nil
}

func uniformMean(preds []*tensor.Tensor, base *tensor.Tensor) (*tensor.Tensor, error) {
	acc := make([]float64, base.Len())
	for _, p := range preds {
		for e, v := range p.Data() {
			acc[e] += float64(v)
		}
	}
	out, err := tensor.Zeros(base.Shape())
	if err != nil {
		return nil, err
	}
	inv := 1 / float64(len(preds))
	dst := out.Data()
	for e, sum := range acc {
		dst[e] = float32(sum * inv)
	}
	return out, nil
}

func weightedMean(preds []*tensor.Tensor, weights *tensor.Tensor, base *tensor.Tensor) (*tensor.Tensor, error) {
	n := len(preds)
	wShape := weights.Shape()
	reject := func() (*tensor.Tensor, error) {
		return nil, &InvalidWeightShapeError{Shape: wShape, Members: n}
	}
	if weights.Rank() < 1 || weights.Rank() > 3 || weights.Dim(0) != n {
		return reject()
	}

	batch, chans := 1, 1
	if base.Rank() >= 1 {
		batch = base.Dim(0)
	}
	if base.Rank() >= 2 {
		chans = base.Dim(1)
	}
	batchStride := base.Len() / batch
	chanStride := batchStride / chans

	wd := weights.Data()
	acc := make([]float64, base.Len())

	switch weights.Rank() {
	case 1:
		var denom float64
		for i := 0; i < n; i++ {
			denom += float64(wd[i])
		}
		if denom == 0 {
			return nil, &DegenerateWeightsError{Batch: -1, Channel: -1}
		}
		for i, p := range preds {
			w := float64(wd[i])
			for e, v := range p.Data() {
				acc[e] += w * float64(v)
			}
		}
		return finishMean(base, acc, func(int) float64 { return denom })

	case 2:
		if base.Rank() < 1 || weights.Dim(1) != batch {
			return reject()
		}
		denoms := make([]float64, batch)
		for i := 0; i < n; i++ {
			for b := 0; b < batch; b++ {
				denoms[b] += float64(wd[i*batch+b])
			}
		}
		for b, d := range denoms {
			if d == 0 {
				return nil, &DegenerateWeightsError{Batch: b, Channel: -1}
			}
		}
		for i, p := range preds {
			row := wd[i*batch : (i+1)*batch]
			for e, v := range p.Data() {
				acc[e] += float64(row[e/batchStride]) * float64(v)
			}
		}
		return finishMean(base, acc, func(e int) float64 { return denoms[e/batchStride] })

	case 3:
		if base.Rank() < 2 || weights.Dim(1) != batch || weights.Dim(2) != chans {
			return reject()
		}
		denoms := make([]float64, batch*chans)
		for i := 0; i < n; i++ {
			for bc := 0; bc < batch*chans; bc++ {
				denoms[bc] += float64(wd[i*batch*chans+bc])
			}
		}
		for bc, d := range denoms {
			if d == 0 {
				return nil, &DegenerateWeightsError{Batch: bc / chans, Channel: bc % chans}
			}
		}
		cell := func(e int) int {
			b := e / batchStride
			c := (e % batchStride) / chanStride
			return b*chans + c
		}
		for i, p := range preds {
			row := wd[i*batch*chans : (i+1)*batch*chans]
			for e, v := range p.Data() {
				acc[e] += float64(row[cell(e)]) * float64(v)
			}
		}
		return finishMean(base, acc, func(e int) float64 { return denoms[cell(e)] })

	default:
		return reject()
	}
}

func finishMean(base *tensor.Tensor, acc []float64, denom func(e int) float64) (*tensor.Tensor, error) {
	out, err := tensor.Zeros(base.Shape())
	if err != nil {
		return nil, err
	}
	dst := out.Data()
	for e, sum := range acc {
		dst[e] = float32(sum / denom(e))
	}
	return out, nil
}
