package fit

import "fmt"

// ErrShapeMismatch is returned when a mutator receives a sequence whose
// length does not match the model's fixed arity.
// Use errors.Is(err, ErrShapeMismatch) to check for this error.
var ErrShapeMismatch = &ShapeMismatchError{}

// ShapeMismatchError reports a sequence of the wrong length for the
// model field it targets. Axis is -1 unless the mismatch is confined to
// a single axis of a per-axis field.
type ShapeMismatchError struct {
	Field string
	Want  int
	Got   int
	Axis  int
}

func (e *ShapeMismatchError) Error() string {
	if e.Axis >= 0 {
		return fmt.Sprintf("shape mismatch: %s: axis %d: want %d values, got %d", e.Field, e.Axis, e.Want, e.Got)
	}
	return fmt.Sprintf("shape mismatch: %s: want %d, got %d", e.Field, e.Want, e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool {
	_, ok := target.(*ShapeMismatchError)
	return ok
}

// ErrInvalidArgument is returned when an argument is malformed for
// reasons other than its length.
// Use errors.Is(err, ErrInvalidArgument) to check for this error.
var ErrInvalidArgument = &InvalidArgumentError{}

// InvalidArgumentError reports a malformed argument or an operation
// that the model's current state cannot satisfy.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Field + ": " + e.Reason
}

func (e *InvalidArgumentError) Is(target error) bool {
	_, ok := target.(*InvalidArgumentError)
	return ok
}
