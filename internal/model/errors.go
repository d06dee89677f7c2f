package model

import "errors"

var (
	// ErrInvalidConfiguration reports a bad table size or sequence type.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidArgument reports malformed values passed to the generator or the scorer.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState reports an operation that is not valid in the current session state.
	ErrInvalidState = errors.New("invalid state")
)
