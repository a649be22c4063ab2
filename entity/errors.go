package entity

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobTerminal       = errors.New("job already in a final state")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrCustomDisabled    = errors.New("custom transformations are disabled")
)

// ValidationError rejects a request at submission; no job is created
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// FetchError is a terminal failure of the source stage
type FetchError struct {
	Source SourceKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s source failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransformError is a terminal failure of one transformation step
type TransformError struct {
	Step int
	Type TransformationType
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transformation %d (%s) failed: %v", e.Step, e.Type, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// SinkError is a terminal failure to serialize or deliver a dataset
type SinkError struct {
	Sink SinkKind
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
