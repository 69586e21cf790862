// Package tensor provides the dense float32 n-dimensional array used to
// carry segmentation model outputs between engines, reducers and scoring.
// Layout is row-major with the convention [batch, channels, spatial...].
package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense row-major float32 array. The zero value is not usable;
// construct via New, Zeros or Full.
type Tensor struct {
	shape   []int
	strides []int
	data    []float32
}

// ElementCount returns the number of elements implied by shape. Every
// dimension must be positive and the product must fit in an int.
func ElementCount(shape []int) (int, error) {
	n := 1
	for i, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("tensor: dimension %d is %d, must be positive", i, d)
		}
		if n > math.MaxInt/d {
			return 0, fmt.Errorf("tensor: element count overflows int for shape %v", shape)
		}
		n *= d
	}
	return n, nil
}

// New wraps data in a tensor of the given shape. The tensor takes ownership
// of data; callers that need an independent copy should Clone.
func New(shape []int, data []float32) (*Tensor, error) {
	n, err := ElementCount(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("tensor: shape %v wants %d elements, data has %d", shape, n, len(data))
	}
	return &Tensor{shape: copyInts(shape), strides: computeStrides(shape), data: data}, nil
}

// Zeros allocates a zero-filled tensor of the given shape.
func Zeros(shape []int) (*Tensor, error) {
	n, err := ElementCount(shape)
	if err != nil {
		return nil, err
	}
	return &Tensor{shape: copyInts(shape), strides: computeStrides(shape), data: make([]float32, n)}, nil
}

// Full allocates a tensor of the given shape with every element set to v.
func Full(shape []int, v float32) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		t.data[i] = v
	}
	return t, nil
}

func (t *Tensor) Rank() int { return len(t.shape) }

// Len returns the total number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Shape returns a copy of the dimensions.
func (t *Tensor) Shape() []int { return copyInts(t.shape) }

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// Data exposes the backing slice. Mutating it mutates the tensor.
func (t *Tensor) Data() []float32 { return t.data }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: copyInts(t.shape), strides: copyInts(t.strides), data: data}
}

// SameShape reports whether t and o have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	return ShapeEqual(t.shape, o.shape)
}

// At returns the element at the given multi-index.
func (t *Tensor) At(indices ...int) (float32, error) {
	off, err := t.offset(indices)
	if err != nil {
		return 0, err
	}
	return t.data[off], nil
}

// Set writes the element at the given multi-index.
func (t *Tensor) Set(v float32, indices ...int) error {
	off, err := t.offset(indices)
	if err != nil {
		return err
	}
	t.data[off] = v
	return nil
}

func (t *Tensor) offset(indices []int) (int, error) {
	if len(indices) != len(t.shape) {
		return 0, fmt.Errorf("tensor: got %d indices for rank %d", len(indices), len(t.shape))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			return 0, fmt.Errorf("tensor: index %d out of range [0,%d) on dimension %d", idx, t.shape[i], i)
		}
		off += idx * t.strides[i]
	}
	return off, nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("f32%v", t.shape)
}

// ShapeEqual reports whether two dimension lists are identical.
func ShapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func computeStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func copyInts(src []int) []int {
	out := make([]int, len(src))
	copy(out, src)
	return out
}
