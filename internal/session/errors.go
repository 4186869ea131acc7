package session

import (
	"errors"
	"fmt"
)

// LoadError is returned when a model cannot be loaded. No engine handles are
// retained after it.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le LoadError
	return errors.As(err, &le)
}

type noModelError struct{}

func (noModelError) Error() string { return "no model loaded" }

// ErrNoModel is returned by Generate before a successful Load.
var ErrNoModel error = noModelError{}

// IsNoModel reports whether err indicates that no model is loaded.
func IsNoModel(err error) bool {
	_, ok := err.(noModelError)
	return ok
}

// ContextError reports that the inference context or the sampler chain could
// not be created for a generation call. Nothing was processed.
type ContextError struct {
	Component string
	Size      int
	Err       error
}

func (e ContextError) Error() string {
	return fmt.Sprintf("create %s (n_ctx=%d): %v", e.Component, e.Size, e.Err)
}

func (e ContextError) Unwrap() error { return e.Err }

// IsContextError reports whether err is a ContextError.
func IsContextError(err error) bool {
	var ce ContextError
	return errors.As(err, &ce)
}

// IngestError reports a failed prompt chunk. Ingestion is not retried.
type IngestError struct {
	Chunk  int
	Offset int
	Err    error
}

func (e IngestError) Error() string {
	return fmt.Sprintf("ingest chunk %d at offset %d: %v", e.Chunk, e.Offset, e.Err)
}

func (e IngestError) Unwrap() error { return e.Err }

// IsIngestError reports whether err is an IngestError.
func IsIngestError(err error) bool {
	var ie IngestError
	return errors.As(err, &ie)
}

// TokenizeError is returned when the prompt cannot be tokenized even after
// growing the buffer, or yields no tokens.
type TokenizeError struct {
	Reason string
}

func (e TokenizeError) Error() string { return "tokenize: " + e.Reason }

// IsTokenizeError reports whether err is a TokenizeError.
func IsTokenizeError(err error) bool {
	var te TokenizeError
	return errors.As(err, &te)
}

// tooBusyError signals that a generation or load is already running.
type tooBusyError struct{ op string }

func (e tooBusyError) Error() string { return "too busy: " + e.op + " rejected while session is in use" }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// modelNotFoundError is returned when a registry id does not resolve.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for an unknown model id.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}
