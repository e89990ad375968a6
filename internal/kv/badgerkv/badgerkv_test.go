package badgerkv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/claimledger/internal/kv"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestUpdateThenView(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	require.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
		return txn.Set("claimledger/counter", []byte("1"))
	}))

	require.NoError(t, s.View(ctx, func(r kv.Reader) error {
		v, found, err := r.Get("claimledger/counter")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("1"), v)

		_, found, err = r.Get("absent")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	boom := errors.New("boom")
	err := s.Update(ctx, func(txn kv.Txn) error {
		require.NoError(t, txn.Set("k", []byte("v")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(r kv.Reader) error {
		_, found, err := r.Get("k")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestConcurrentUpdatesDoNotConflict(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
				v, _, err := txn.Get("n")
				if err != nil {
					return err
				}
				return txn.Set("n", append(v, 'x'))
			}))
		}()
	}
	wg.Wait()

	require.NoError(t, s.View(ctx, func(r kv.Reader) error {
		v, _, err := r.Get("n")
		require.NoError(t, err)
		assert.Len(t, v, workers)
		return nil
	}))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s1.Update(ctx, func(txn kv.Txn) error {
		return txn.Set("k", []byte("durable"))
	}))
	require.NoError(t, s1.Close())

	s2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.View(ctx, func(r kv.Reader) error {
		v, found, err := r.Get("k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("durable"), v)
		return nil
	}))
}
