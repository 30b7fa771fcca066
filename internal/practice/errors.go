package practice

import "errors"

var (
	// ErrUnresolvable means no judge could determine the correct answer. It
	// is distinct from an incorrect answer and nothing is recorded.
	ErrUnresolvable = errors.New("answer cannot be verified")

	// ErrInvalidMode is returned for an unknown practice mode.
	ErrInvalidMode = errors.New("invalid practice mode")

	// ErrEmptyAnswer is returned when no option was selected.
	ErrEmptyAnswer = errors.New("answer is empty")

	// ErrStaleResponse is returned when a newer list request superseded
	// this one; its result was discarded.
	ErrStaleResponse = errors.New("superseded by a newer request")
)
