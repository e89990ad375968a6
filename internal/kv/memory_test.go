package kv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetAbsent(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	err := m.View(context.Background(), func(r Reader) error {
		v, found, err := r.Get("missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryUpdateCommits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Update(ctx, func(txn Txn) error {
		require.NoError(t, txn.Set("k", []byte("v1")))
		// Writes are visible inside the same unit.
		v, found, err := txn.Get("k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v1"), v)
		return nil
	}))

	require.NoError(t, m.View(ctx, func(r Reader) error {
		v, found, err := r.Get("k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v1"), v)
		return nil
	}))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	boom := errors.New("boom")
	err := m.Update(ctx, func(txn Txn) error {
		require.NoError(t, txn.Set("k", []byte("v")))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	buf := []byte("abc")
	require.NoError(t, m.Update(ctx, func(txn Txn) error { return txn.Set("k", buf) }))
	buf[0] = 'X'

	require.NoError(t, m.View(ctx, func(r Reader) error {
		v, _, _ := r.Get("k")
		assert.Equal(t, []byte("abc"), v)
		v[1] = 'Y'
		return nil
	}))
	require.NoError(t, m.View(ctx, func(r Reader) error {
		v, _, _ := r.Get("k")
		assert.Equal(t, []byte("abc"), v)
		return nil
	}))
}

func TestMemoryUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Update(ctx, func(txn Txn) error {
				v, _, err := txn.Get("n")
				if err != nil {
					return err
				}
				return txn.Set("n", append(v, 'x'))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, m.View(ctx, func(r Reader) error {
		v, _, _ := r.Get("n")
		assert.Len(t, v, workers)
		return nil
	}))
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	err := m.View(context.Background(), func(Reader) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
	err = m.Update(context.Background(), func(Txn) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryHonorsCancelledContext(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Update(ctx, func(Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
