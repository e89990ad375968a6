// Package kv defines the durable key-value contract the claim core runs on
// and an in-memory backend for tests and ephemeral runs.
//
// The contract is deliberately small: Get and Set by opaque string key,
// grouped into units of work. Update units are serialized by every backend,
// so a read-modify-write inside one unit is never interleaved with another
// unit's. A unit whose function returns an error commits nothing.
package kv

import (
	"context"
	"errors"
)

// Reader reads keys inside a unit of work.
type Reader interface {
	// Get returns the value stored under key. found is false when the key
	// is absent; err is reserved for substrate failures.
	Get(key string) (value []byte, found bool, err error)
}

// Txn reads and writes keys inside an update unit.
// Writes are visible to later Gets in the same unit.
type Txn interface {
	Reader
	Set(key string, value []byte) error
}

// Store is a durable key-value substrate.
type Store interface {
	// View runs fn against a consistent read-only view.
	View(ctx context.Context, fn func(Reader) error) error

	// Update runs fn as one atomic, serialized unit. If fn returns an
	// error, none of its writes become visible.
	Update(ctx context.Context, fn func(Txn) error) error

	Close() error
}

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("kv: store closed")
