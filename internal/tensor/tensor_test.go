package tensor

import (
	"strings"
	"testing"
)

func TestElementCount(t *testing.T) {
	n, err := ElementCount([]int{1, 2, 4, 4, 4})
	if err != nil {
		t.Fatalf("ElementCount: %v", err)
	}
	if n != 128 {
		t.Fatalf("expected 128 elements, got %d", n)
	}
	if _, err := ElementCount([]int{2, 0, 3}); err == nil {
		t.Fatalf("expected error for zero dimension")
	}
	if _, err := ElementCount([]int{-1}); err == nil {
		t.Fatalf("expected error for negative dimension")
	}
}

func TestElementCountOverflow(t *testing.T) {
	huge := []int{1 << 31, 1 << 31, 1 << 31}
	if _, err := ElementCount(huge); err == nil {
		t.Fatalf("expected overflow error for shape %v", huge)
	} else if !strings.Contains(err.Error(), "overflow") {
		t.Fatalf("expected overflow message, got %v", err)
	}
}

func TestNewValidatesDataLength(t *testing.T) {
	if _, err := New([]int{2, 3}, make([]float32, 5)); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	tt, err := New([]int{2, 3}, []float32{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tt.Rank() != 2 || tt.Len() != 6 {
		t.Fatalf("unexpected rank/len: %d/%d", tt.Rank(), tt.Len())
	}
}

func TestAtSetRowMajor(t *testing.T) {
	tt, err := New([]int{2, 3}, []float32{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := tt.At(1, 2)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got != 5 {
		t.Fatalf("At(1,2) = %v, want 5", got)
	}
	if err := tt.Set(9, 0, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if tt.Data()[1] != 9 {
		t.Fatalf("Set did not land at flat offset 1: %v", tt.Data())
	}
	if _, err := tt.At(2, 0); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := tt.At(0); err == nil {
		t.Fatalf("expected index-count error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a, err := Full([]int{1, 1, 2, 2}, 0.5)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	b := a.Clone()
	b.Data()[0] = 7
	if a.Data()[0] != 0.5 {
		t.Fatalf("clone shares backing data")
	}
	if !a.SameShape(b) {
		t.Fatalf("clone changed shape")
	}
}

func TestShapeEqual(t *testing.T) {
	if !ShapeEqual([]int{1, 2, 3}, []int{1, 2, 3}) {
		t.Fatalf("identical shapes reported unequal")
	}
	if ShapeEqual([]int{1, 2, 3}, []int{1, 2}) {
		t.Fatalf("different ranks reported equal")
	}
	if ShapeEqual([]int{1, 2, 3}, []int{1, 2, 4}) {
		t.Fatalf("different dims reported equal")
	}
}

func TestShapeIsCopied(t *testing.T) {
	shape := []int{2, 2}
	tt, err := Zeros(shape)
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	shape[0] = 99
	if tt.Dim(0) != 2 {
		t.Fatalf("constructor kept caller's shape slice")
	}
	got := tt.Shape()
	got[1] = 99
	if tt.Dim(1) != 2 {
		t.Fatalf("Shape() returned internal slice")
	}
}
