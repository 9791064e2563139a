// Package apperr holds the error taxonomy shared by the session, index and
// HTTP layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no session record exists for the id.
	ErrNotFound = errors.New("session not found")

	// ErrIndexNotFound means the session exists but nothing has been indexed yet.
	ErrIndexNotFound = errors.New("index not found for session")

	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// LoadError reports an index artifact that exists but could not be loaded.
// Re-indexing the session repairs it.
type LoadError struct {
	SessionId string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load index for session %s: %v", e.SessionId, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// StorageError reports a failure of the durable medium behind the session store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ExternalError wraps a failure of the indexing, retrieval or generation backends.
type ExternalError struct {
	Op  string // "index", "retrieve", "generate"
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Op: op, Err: err}
}

func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func IsExternalError(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee)
}
