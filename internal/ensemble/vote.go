package ensemble

import (
	"math"

	"github.com/yungbote/segbridge/internal/tensor"
)

// TieBreak selects the winner when two or more class values are tied for
// the highest vote count in class-index mode.
type TieBreak int

const (
	// TieSmallestValue picks the smallest tied class value. Default.
	TieSmallestValue TieBreak = iota
	// TieLargestValue picks the largest tied class value.
	TieLargestValue
)

// HalfVotePolicy decides a channel that receives exactly N/2 "on" votes
// in one-hot mode; a strict majority is always "on".
type HalfVotePolicy int

const (
	// HalfVoteOff resolves an exact half split to "off". Default.
	HalfVoteOff HalfVotePolicy = iota
	// HalfVoteOn resolves an exact half split to "on".
	HalfVoteOn
)

// VoteOptions tunes the vote reducer. The zero value gives the default
// policies: smallest tied value wins, exact halves resolve to off, class
// range inferred from the data, and no discreteness verification.
type VoteOptions struct {
	// NumClasses bounds the class values in class-index mode. When set,
	// every value must be an integer in [0, NumClasses) or the reduction
	// fails with NonDiscreteInputError. Zero means unbounded.
	NumClasses int
	// Strict verifies all inputs are discrete before any counting starts:
	// non-negative integers in class-index mode, exactly 0 or 1 per
	// channel in one-hot mode.
	Strict    bool
	TieBreak  TieBreak
	HalfVotes HalfVotePolicy
}

// Vote computes the majority prediction across the ensemble axis.
//
// Members with a single channel (or rank below 2) are treated as
// class-index encoded: each output position takes the most frequent value
// among the N members, ties broken per VoteOptions.TieBreak. Members with
// more than one channel are treated as one-hot encoded: each channel is
// "on" when more than half the members voted nonzero, with exact halves
// decided by VoteOptions.HalfVotes.
//
// Inputs must already be discretized; Vote never thresholds or rounds.
func Vote(preds []*tensor.Tensor, opts VoteOptions) (*tensor.Tensor, error) {
	base, err := checkAligned(preds)
	if err != nil {
		return nil, err
	}
	chans := 1
	if base.Rank() >= 2 {
		chans = base.Dim(1)
	}
	if opts.Strict {
		if err := checkDiscrete(preds, chans > 1, opts.NumClasses); err != nil {
			return nil, err
		}
	}
	if chans > 1 {
		return oneHotVote(preds, base, opts.HalfVotes)
	}
	return classIndexVote(preds, base, opts)
}

func checkDiscrete(preds []*tensor.Tensor, oneHot bool, numClasses int) error {
	for i, p := range preds {
		for e, v := range p.Data() {
			if oneHot {
				if v != 0 && v != 1 {
					return &NonDiscreteInputError{Member: i, Offset: e, Value: v}
				}
				continue
			}
			if _, ok := discreteClass(v, numClasses); !ok {
				return &NonDiscreteInputError{Member: i, Offset: e, Value: v}
			}
		}
	}
	return nil
}

// discreteClass reports whether v is a usable class value and returns it
// as an int. numClasses of zero means no upper bound.
func discreteClass(v float32, numClasses int) (int, bool) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 {
		return 0, false
	}
	if f > float64(math.MaxInt32) {
		return 0, false
	}
	cls := int(f)
	if numClasses > 0 && cls >= numClasses {
		return 0, false
	}
	return cls, true
}

func classIndexVote(preds []*tensor.Tensor, base *tensor.Tensor, opts VoteOptions) (*tensor.Tensor, error) {
	out, err := tensor.Zeros(base.Shape())
	if err != nil {
		return nil, err
	}
	if opts.NumClasses > 0 {
		return boundedClassVote(preds, out, opts)
	}

	n := len(preds)
	dst := out.Data()
	vals := make([]float32, n)
	for e := range dst {
		for i, p := range preds {
			vals[i] = p.Data()[e]
		}
		bestVal := vals[0]
		bestCount := 0
		for i := 0; i < n; i++ {
			c := 0
			for j := 0; j < n; j++ {
				if vals[j] == vals[i] {
					c++
				}
			}
			if c > bestCount || (c == bestCount && tiePrefer(opts.TieBreak, vals[i], bestVal)) {
				bestCount, bestVal = c, vals[i]
			}
		}
		dst[e] = bestVal
	}
	return out, nil
}

// boundedClassVote counts into a fixed class histogram. Values outside
// [0, NumClasses) cannot be counted, so they fail even without Strict.
func boundedClassVote(preds []*tensor.Tensor, out *tensor.Tensor, opts VoteOptions) (*tensor.Tensor, error) {
	counts := make([]int, opts.NumClasses)
	dst := out.Data()
	for e := range dst {
		for i := range counts {
			counts[i] = 0
		}
		for i, p := range preds {
			v := p.Data()[e]
			cls, ok := discreteClass(v, opts.NumClasses)
			if !ok {
				return nil, &NonDiscreteInputError{Member: i, Offset: e, Value: v}
			}
			counts[cls]++
		}
		best := 0
		if opts.TieBreak == TieLargestValue {
			for cls, c := range counts {
				if c >= counts[best] {
					best = cls
				}
			}
		} else {
			for cls, c := range counts {
				if c > counts[best] {
					best = cls
				}
			}
		}
		dst[e] = float32(best)
	}
	return out, nil
}

func oneHotVote(preds []*tensor.Tensor, base *tensor.Tensor, half HalfVotePolicy) (*tensor.Tensor, error) {
	out, err := tensor.Zeros(base.Shape())
	if err != nil {
		return nil, err
	}
	n := len(preds)
	dst := out.Data()
	for e := range dst {
		votes := 0
		for _, p := range preds {
			if p.Data()[e] != 0 {
				votes++
			}
		}
		if votes*2 > n || (votes*2 == n && half == HalfVoteOn) {
			dst[e] = 1
		}
	}
	return out, nil
}

func tiePrefer(policy TieBreak, candidate, current float32) bool {
	if policy == TieLargestValue {
		return candidate > current
	}
	return candidate < current
}
