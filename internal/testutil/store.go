package testutil

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/roach88/claimledger/internal/kv"
)

// ErrInjected is the failure FaultyStore injects.
var ErrInjected = errors.New("injected store failure")

// FaultyStore wraps a kv.Store and fails operations on demand. Faults are
// toggled with atomics so tests can flip them between calls.
type FaultyStore struct {
	inner kv.Store

	failView   atomic.Bool
	failUpdate atomic.Bool
	failSet    atomic.Value // string key prefix, "" = off
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner kv.Store) *FaultyStore {
	f := &FaultyStore{inner: inner}
	f.failSet.Store("")
	return f
}

// FailViews makes every View fail before running.
func (f *FaultyStore) FailViews(on bool) { f.failView.Store(on) }

// FailUpdates makes every Update fail before running.
func (f *FaultyStore) FailUpdates(on bool) { f.failUpdate.Store(on) }

// FailSetsWithPrefix makes Set fail for keys starting with prefix, aborting
// the unit after earlier writes were staged. "" turns it off.
func (f *FaultyStore) FailSetsWithPrefix(prefix string) { f.failSet.Store(prefix) }

// View implements kv.Store.
func (f *FaultyStore) View(ctx context.Context, fn func(kv.Reader) error) error {
	if f.failView.Load() {
		return ErrInjected
	}
	return f.inner.View(ctx, fn)
}

// Update implements kv.Store.
func (f *FaultyStore) Update(ctx context.Context, fn func(kv.Txn) error) error {
	if f.failUpdate.Load() {
		return ErrInjected
	}
	prefix := f.failSet.Load().(string)
	return f.inner.Update(ctx, func(txn kv.Txn) error {
		return fn(&faultyTxn{Txn: txn, prefix: prefix})
	})
}

// Close implements kv.Store.
func (f *FaultyStore) Close() error {
	return f.inner.Close()
}

type faultyTxn struct {
	kv.Txn
	prefix string
}

func (t *faultyTxn) Set(key string, value []byte) error {
	if t.prefix != "" && strings.HasPrefix(key, t.prefix) {
		return ErrInjected
	}
	return t.Txn.Set(key, value)
}
