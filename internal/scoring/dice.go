// Package scoring implements the overlap metrics used to evaluate
// aggregated segmentations against reference masks.
package scoring

import (
	"fmt"
	"math"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/tensor"
)

// Options tunes Dice. The zero value skips channel 0 (background) and
// scores empty-vs-empty channels as a perfect 1.
type Options struct {
	// IncludeBackground counts channel 0. Forced on for single-channel
	// masks, where there is nothing else to score.
	IncludeBackground bool
	// IgnoreEmpty drops channels that are empty in both tensors from the
	// mean instead of scoring them 1.
	IgnoreEmpty bool
}

// Result holds per-channel Dice coefficients. Channels excluded from
// scoring carry NaN in PerChannel and do not contribute to Mean.
type Result struct {
	PerChannel []float64
	Mean       float64
}

// Dice computes the Soerensen-Dice coefficient between a predicted mask
// and a reference mask of identical shape [B, C, spatial...]. Any nonzero
// element counts as foreground; inputs are expected to be discretized
// already. Scores are averaged over the batch per channel.
func Dice(pred, truth *tensor.Tensor, opts Options) (Result, error) {
	if pred.Rank() < 2 {
		return Result{}, fmt.Errorf("scoring: dice needs shape [B, C, ...], got %v: %w", pred.Shape(), pkgerrors.ErrInvalidArgument)
	}
	if !pred.SameShape(truth) {
		return Result{}, fmt.Errorf("scoring: shape %v does not match reference %v: %w", pred.Shape(), truth.Shape(), pkgerrors.ErrInvalidArgument)
	}

	batch := pred.Dim(0)
	chans := pred.Dim(1)
	batchStride := pred.Len() / batch
	chanStride := batchStride / chans

	includeBackground := opts.IncludeBackground || chans == 1

	perChannel := make([]float64, chans)
	for c := range perChannel {
		perChannel[c] = math.NaN()
	}

	var meanSum float64
	var meanCount int
	pd, td := pred.Data(), truth.Data()
	for c := 0; c < chans; c++ {
		if c == 0 && !includeBackground {
			continue
		}
		var scoreSum float64
		var scored int
		for b := 0; b < batch; b++ {
			base := b*batchStride + c*chanStride
			var inter, predVox, truthVox int
			for s := 0; s < chanStride; s++ {
				p := pd[base+s] != 0
				g := td[base+s] != 0
				if p {
					predVox++
				}
				if g {
					truthVox++
				}
				if p && g {
					inter++
				}
			}
			if predVox+truthVox == 0 {
				if opts.IgnoreEmpty {
					continue
				}
				scoreSum++
				scored++
				continue
			}
			scoreSum += 2 * float64(inter) / float64(predVox+truthVox)
			scored++
		}
		if scored == 0 {
			continue
		}
		score := scoreSum / float64(scored)
		perChannel[c] = score
		meanSum += score
		meanCount++
	}

	res := Result{PerChannel: perChannel, Mean: math.NaN()}
	if meanCount > 0 {
		res.Mean = meanSum / float64(meanCount)
	}
	return res, nil
}
