package tools

import (
	"errors"
)

var (
	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrUnknownTool is returned when invoking an unregistered name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when arguments do not satisfy the
	// tool's declared schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrEvaluation is returned when the capability itself fails over
	// well-formed input, e.g. division by zero.
	ErrEvaluation = errors.New("tool evaluation failed")
)
