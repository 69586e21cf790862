package ensemble

import (
	"errors"
	"strings"
	"testing"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
)

func TestTaxonomyUnwrapsToInvalidArgument(t *testing.T) {
	cases := []error{
		ErrEmptyCollection,
		&ShapeMismatchError{Member: 1, Want: []int{1, 1, 4}, Got: []int{1, 1, 5}},
		&InvalidWeightShapeError{Shape: []int{2, 2, 3, 5}, Members: 2},
		&DegenerateWeightsError{Batch: -1, Channel: -1},
		&NonDiscreteInputError{Member: 0, Offset: 3, Value: 0.5},
	}
	for _, err := range cases {
		if !errors.Is(err, pkgerrors.ErrInvalidArgument) {
			t.Fatalf("%T should unwrap to ErrInvalidArgument", err)
		}
	}
}

func TestDegenerateWeightsMessageNamesCell(t *testing.T) {
	cases := []struct {
		err  *DegenerateWeightsError
		want string
	}{
		{&DegenerateWeightsError{Batch: -1, Channel: -1}, "weights sum to zero"},
		{&DegenerateWeightsError{Batch: 2, Channel: -1}, "batch 2"},
		{&DegenerateWeightsError{Batch: 1, Channel: 3}, "batch 1 channel 3"},
	}
	for _, c := range cases {
		if got := c.err.Error(); !strings.Contains(got, c.want) {
			t.Fatalf("message %q does not mention %q", got, c.want)
		}
	}
}
