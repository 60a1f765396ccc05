// Package kv defines the key-value persistence collaborator shared by the
// catalog and the cart, together with an in-memory implementation.
package kv

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrStorageFull is returned when the backend refuses a write for lack of
	// space or quota.
	ErrStorageFull = errors.New("storage full")
	// ErrStorageUnavailable is returned when the backend cannot be reached or
	// fails for any other reason.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store persists opaque documents under string keys.
type Store interface {
	// Get returns the value stored under key. The boolean is false when the
	// key has never been written.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by stores that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Unavailable wraps err so that it matches ErrStorageUnavailable while
// keeping the original cause in the message.
func Unavailable(err error, op string) error {
	return &Error{Op: op, Kind: ErrStorageUnavailable, Err: err}
}

// Full wraps err so that it matches ErrStorageFull.
func Full(err error, op string) error {
	return &Error{Op: op, Kind: ErrStorageFull, Err: err}
}

// Error is a backend failure classified as one of the storage sentinels.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Is matches the classification sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
