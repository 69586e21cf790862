// Package folds plans k-fold cross-validation splits: each fold holds out
// one validation partition and trains on the rest, so a k-member ensemble
// gets one model per fold.
package folds

import (
	"fmt"
	"math"
	"math/rand"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
)

// Plan is a complete assignment of samples to validation folds.
type Plan struct {
	folds [][]string
}

// Split partitions samples into k contiguous folds. The first
// len(samples) % k folds receive one extra sample so sizes differ by at
// most one. Assignment is deterministic in the input order.
func Split(samples []string, k int) (*Plan, error) {
	if k < 2 {
		return nil, fmt.Errorf("folds: fold count %d must be at least 2: %w", k, pkgerrors.ErrInvalidArgument)
	}
	if len(samples) < k {
		return nil, fmt.Errorf("folds: %d samples cannot fill %d folds: %w", len(samples), k, pkgerrors.ErrInvalidArgument)
	}
	folds := make([][]string, k)
	base := len(samples) / k
	extra := len(samples) % k
	idx := 0
	for f := 0; f < k; f++ {
		size := base
		if f < extra {
			size++
		}
		folds[f] = append([]string(nil), samples[idx:idx+size]...)
		idx += size
	}
	return &Plan{folds: folds}, nil
}

// SplitShuffled shuffles samples with the given seed before splitting, so
// the same seed always produces the same plan.
func SplitShuffled(samples []string, k int, seed int64) (*Plan, error) {
	shuffled := append([]string(nil), samples...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return Split(shuffled, k)
}

// WeightsFromScores turns per-fold validation scores into mean-ensemble
// weights. Scores pass through unscaled, since the weighted mean divides
// by the weight sum; they must be finite and non-negative with a
// positive sum.
func WeightsFromScores(scores []float64) ([]float64, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("folds: no scores to weight: %w", pkgerrors.ErrInvalidArgument)
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return nil, fmt.Errorf("folds: score %d is %v, want a finite non-negative value: %w", i, s, pkgerrors.ErrInvalidArgument)
		}
		out[i] = s
		sum += s
	}
	if sum == 0 {
		return nil, fmt.Errorf("folds: scores sum to zero: %w", pkgerrors.ErrInvalidArgument)
	}
	return out, nil
}

func (p *Plan) NumFolds() int { return len(p.folds) }

// Validation returns the held-out samples of fold f.
func (p *Plan) Validation(f int) []string {
	return append([]string(nil), p.folds[f]...)
}

// Training returns every sample outside fold f, in plan order.
func (p *Plan) Training(f int) []string {
	var out []string
	for i, fold := range p.folds {
		if i == f {
			continue
		}
		out = append(out, fold...)
	}
	return out
}

// All returns every sample in plan order.
func (p *Plan) All() []string {
	var out []string
	for _, fold := range p.folds {
		out = append(out, fold...)
	}
	return out
}
