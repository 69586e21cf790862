package ensemble

import (
	"errors"
	"fmt"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
)

// ErrEmptyCollection is returned when a reducer receives zero predictions.
var ErrEmptyCollection = fmt.Errorf("ensemble: empty prediction collection: %w", pkgerrors.ErrInvalidArgument)

// ShapeMismatchError reports a member whose shape differs from member 0.
// No reduction output is produced.
type ShapeMismatchError struct {
	Member int
	Want   []int
	Got    []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("ensemble: member %d has shape %v, want %v", e.Member, e.Got, e.Want)
}

func (e *ShapeMismatchError) Unwrap() error { return pkgerrors.ErrInvalidArgument }

// InvalidWeightShapeError reports a weight tensor outside the accepted
// forms [N], [N,B] and [N,B,C] for a collection of N members.
type InvalidWeightShapeError struct {
	Shape   []int
	Members int
}

func (e *InvalidWeightShapeError) Error() string {
	return fmt.Sprintf("ensemble: weight shape %v not broadcastable over %d members; accepted forms are [N], [N,B] and [N,B,C]", e.Shape, e.Members)
}

func (e *InvalidWeightShapeError) Unwrap() error { return pkgerrors.ErrInvalidArgument }

// DegenerateWeightsError reports that the weights contributing to some
// output element sum to zero, which would otherwise yield NaN. Batch and
// Channel identify the broadcast cell; -1 means the axis does not apply
// to the supplied weight form.
type DegenerateWeightsError struct {
	Batch   int
	Channel int
}

func (e *DegenerateWeightsError) Error() string {
	switch {
	case e.Batch < 0:
		return "ensemble: weights sum to zero"
	case e.Channel < 0:
		return fmt.Sprintf("ensemble: weights sum to zero for batch %d", e.Batch)
	default:
		return fmt.Sprintf("ensemble: weights sum to zero for batch %d channel %d", e.Batch, e.Channel)
	}
}

func (e *DegenerateWeightsError) Unwrap() error { return pkgerrors.ErrInvalidArgument }

// NonDiscreteInputError reports a vote-mode precondition violation: the
// value at flat offset Offset of member Member is not a discrete class
// decision. Raised only under strict checking.
type NonDiscreteInputError struct {
	Member int
	Offset int
	Value  float32
}

func (e *NonDiscreteInputError) Error() string {
	return fmt.Sprintf("ensemble: member %d has non-discrete value %v at offset %d", e.Member, e.Value, e.Offset)
}

func (e *NonDiscreteInputError) Unwrap() error { return pkgerrors.ErrInvalidArgument }

// ErrorCode maps a reduction error to its stable machine code, the one
// clients branch on. Unknown errors map to "internal".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var (
		shapeErr      *ShapeMismatchError
		weightErr     *InvalidWeightShapeError
		degenerateErr *DegenerateWeightsError
		discreteErr   *NonDiscreteInputError
	)
	switch {
	case errors.Is(err, ErrEmptyCollection):
		return "empty_collection"
	case errors.As(err, &shapeErr):
		return "shape_mismatch"
	case errors.As(err, &weightErr):
		return "invalid_weight_shape"
	case errors.As(err, &degenerateErr):
		return "degenerate_weights"
	case errors.As(err, &discreteErr):
		return "non_discrete_input"
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return "invalid_argument"
	}
	return "internal"
}
