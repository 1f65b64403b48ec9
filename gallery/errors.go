package gallery

import "errors"

var (
	// Validation errors, rejected before any side effect.
	ErrMissingField     = errors.New("missing field")
	ErrEmptyName        = errors.New("guest name cannot be empty")
	ErrInvalidParameter = errors.New("invalid parameter")

	// Store failures, reported through *OpError.
	ErrUpload  = errors.New("upload image")
	ErrPersist = errors.New("save photo")
	ErrDelete  = errors.New("delete photo")
)

// OpError ties a store failure to the pipeline stage it interrupted.
// errors.Is matches both Kind and the underlying store error.
type OpError struct {
	Kind error
	Err  error
}

func (e *OpError) Error() string { return e.Kind.Error() + ": " + e.Err.Error() }

func (e *OpError) Unwrap() []error { return []error{e.Kind, e.Err} }
