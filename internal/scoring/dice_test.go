package scoring

import (
	"math"
	"testing"

	"github.com/yungbote/segbridge/internal/tensor"
)

func mustNew(t *testing.T, shape []int, data []float32) *tensor.Tensor {
	t.Helper()
	out, err := tensor.New(shape, data)
	if err != nil {
		t.Fatalf("New(%v): %v", shape, err)
	}
	return out
}

func TestDicePerfectOverlap(t *testing.T) {
	mask := mustNew(t, []int{1, 1, 4}, []float32{1, 0, 1, 1})
	res, err := Dice(mask, mask.Clone(), Options{})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if math.Abs(res.Mean-1) > 1e-9 {
		t.Fatalf("identical masks should score 1, got %v", res.Mean)
	}
}

func TestDiceNoOverlap(t *testing.T) {
	pred := mustNew(t, []int{1, 1, 4}, []float32{1, 1, 0, 0})
	truth := mustNew(t, []int{1, 1, 4}, []float32{0, 0, 1, 1})
	res, err := Dice(pred, truth, Options{})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if res.Mean != 0 {
		t.Fatalf("disjoint masks should score 0, got %v", res.Mean)
	}
}

func TestDiceHalfOverlap(t *testing.T) {
	pred := mustNew(t, []int{1, 1, 4}, []float32{1, 1, 0, 0})
	truth := mustNew(t, []int{1, 1, 4}, []float32{1, 0, 1, 0})
	res, err := Dice(pred, truth, Options{})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	// 2*1 / (2+2)
	if math.Abs(res.Mean-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", res.Mean)
	}
}

func TestDiceSkipsBackgroundChannel(t *testing.T) {
	// Channel 0 disagrees entirely, channel 1 agrees entirely.
	pred := mustNew(t, []int{1, 2, 2}, []float32{
		1, 1,
		1, 0,
	})
	truth := mustNew(t, []int{1, 2, 2}, []float32{
		0, 0,
		1, 0,
	})
	res, err := Dice(pred, truth, Options{})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if !math.IsNaN(res.PerChannel[0]) {
		t.Fatalf("background channel should be skipped, got %v", res.PerChannel[0])
	}
	if math.Abs(res.Mean-1) > 1e-9 {
		t.Fatalf("foreground-only mean should be 1, got %v", res.Mean)
	}

	res, err = Dice(pred, truth, Options{IncludeBackground: true})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if math.Abs(res.Mean-0.5) > 1e-9 {
		t.Fatalf("with background the mean should drop to 0.5, got %v", res.Mean)
	}
}

func TestDiceEmptyChannels(t *testing.T) {
	empty := mustNew(t, []int{1, 1, 3}, []float32{0, 0, 0})
	res, err := Dice(empty, empty.Clone(), Options{})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if math.Abs(res.Mean-1) > 1e-9 {
		t.Fatalf("empty vs empty defaults to 1, got %v", res.Mean)
	}

	res, err = Dice(empty, empty.Clone(), Options{IgnoreEmpty: true})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if !math.IsNaN(res.Mean) {
		t.Fatalf("IgnoreEmpty with nothing to score should yield NaN mean, got %v", res.Mean)
	}
}

func TestDiceBatchAveraging(t *testing.T) {
	// Batch 0 matches perfectly, batch 1 not at all.
	pred := mustNew(t, []int{2, 1, 2}, []float32{
		1, 0,
		1, 0,
	})
	truth := mustNew(t, []int{2, 1, 2}, []float32{
		1, 0,
		0, 1,
	})
	res, err := Dice(pred, truth, Options{})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if math.Abs(res.Mean-0.5) > 1e-9 {
		t.Fatalf("expected batch mean 0.5, got %v", res.Mean)
	}
}

func TestDiceShapeMismatch(t *testing.T) {
	a := mustNew(t, []int{1, 1, 2}, []float32{1, 0})
	b := mustNew(t, []int{1, 1, 3}, []float32{1, 0, 0})
	if _, err := Dice(a, b, Options{}); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}
