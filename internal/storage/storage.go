package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound marks a missing key. Not an *errors.Error: callers decide
	// whether a miss is an error at all.
	ErrNotFound = errors.New("storage: key not found")

	// ErrNoChange can be returned from an UpdateFunc to leave the stored
	// value untouched without failing the update.
	ErrNoChange = errors.New("storage: no change")
)

// UpdateFunc transforms the current value of a key into its next value.
// current is nil when the key does not exist yet.
type UpdateFunc func(current []byte) ([]byte, error)

// KV is the capability the ledger and journal are built on: a key-value
// store with a per-key atomic read-modify-write and an append-only list.
// The same ledger/journal logic runs unchanged against the in-memory,
// redis and postgres implementations.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error

	// Update applies fn atomically with respect to concurrent updates of
	// the same key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Append adds value to the ordered list stored at key.
	Append(ctx context.Context, key string, value []byte) error

	// List returns every appended value for key in insertion order.
	List(ctx context.Context, key string) ([][]byte, error)
}
