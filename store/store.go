// Package store defines the State Store contract: durable
// key/value persistence of a single run record, atomic enough that a crash
// mid-save never yields partial state. Concrete backends (file, Redis,
// Mongo) live in sibling packages; this package only fixes the interface
// and the sentinel "absent" result every backend must agree on.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// Store persists and retrieves the single run record for a given storage
// handle (a file path, a Redis key prefix, a Mongo collection — whatever
// the backend addresses a run by). Concurrent writers to the same handle
// are not supported.
type Store interface {
	// Save writes the full record, atomically with respect to readers.
	// Fails with *Error whose Op is the backend-qualified "save" operation
	// (e.g. "file.save").
	Save(ctx context.Context, record workflow.Record) error

	// Load returns the record and true, or a zero Record and false if no
	// prior record exists. A malformed record is treated as absent (the
	// backend is expected to log it, not return it as found=true).
	Load(ctx context.Context) (workflow.Record, bool, error)

	// Exists reports whether a record is present, without decoding it.
	Exists(ctx context.Context) (bool, error)
}

// Error wraps a storage fault with the operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, ErrIOFault) for any *Error.
func (e *Error) Is(target error) bool { return target == ErrIOFault }

// ErrIOFault is the sentinel every *Error wraps; callers that only care
// "was this a storage fault" can use errors.Is(err, store.ErrIOFault).
var ErrIOFault = errors.New("store: io fault")

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
