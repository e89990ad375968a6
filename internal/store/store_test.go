package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/claimledger/internal/auth"
	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/kv"
	"github.com/roach88/claimledger/internal/notify"
	"github.com/roach88/claimledger/internal/testutil"
)

// createTestStore opens a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesPragmasAndSchema(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Update(context.Background(), func(txn kv.Txn) error {
		return txn.Set("k", []byte("v"))
	}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s2.View(context.Background(), func(r kv.Reader) error {
		v, found, err := r.Get("k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "v", string(v))
		return nil
	}))
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestKV_GetSetAndOverwrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
		_, found, err := txn.Get("a")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, txn.Set("a", []byte("1")))
		v, found, err := txn.Get("a")
		require.NoError(t, err)
		assert.True(t, found, "writes are visible inside the unit")
		assert.Equal(t, "1", string(v))

		return txn.Set("a", []byte("2"))
	}))

	require.NoError(t, s.View(ctx, func(r kv.Reader) error {
		v, _, err := r.Get("a")
		require.NoError(t, err)
		assert.Equal(t, "2", string(v))
		return nil
	}))
}

func TestKV_FailedUnitCommitsNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(txn kv.Txn) error {
		require.NoError(t, txn.Set("a", []byte("1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(r kv.Reader) error {
		_, found, err := r.Get("a")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestKV_ConcurrentIncrements(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	const workers = 20

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
				var n int
				if v != nil {
					fmt.Sscanf(string(v), "%d", &n)
				}
				return txn.Set("n", []byte(fmt.Sprintf("%d", n+1)))
			}))
		}()
	}
	wg.Wait()

	require.NoError(t, s.View(ctx, func(r kv.Reader) error {
		v, _, err := r.Get("n")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d", workers), string(v))
		return nil
	}))
}

func TestKV_ConcurrentIncrementsAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()
	const perHandle = 15

	var handles []*Store
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		handles = append(handles, s)
	}

	var wg sync.WaitGroup
	for _, s := range handles {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			for j := 0; j < perHandle; j++ {
				assert.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
					v, _, err := txn.Get("n")
					if err != nil {
						return err
					}
					var n int
					if v != nil {
						fmt.Sscanf(string(v), "%d", &n)
					}
					return txn.Set("n", []byte(fmt.Sprintf("%d", n+1)))
				}))
			}
		}(s)
	}
	wg.Wait()

	require.NoError(t, handles[1].View(ctx, func(r kv.Reader) error {
		v, _, err := r.Get("n")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d", 2*perHandle), string(v))
		return nil
	}))
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"claims.db", "claims.db?_txlock=immediate&_busy_timeout=5000"},
		{":memory:", ":memory:?_txlock=immediate&_busy_timeout=5000"},
		{"file:claims.db?cache=shared", "file:claims.db?cache=shared&_txlock=immediate&_busy_timeout=5000"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, dsn(tt.path))
		})
	}
}

func TestKV_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Update(ctx, func(kv.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClaimsServiceOnSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)

	svc := claims.New(s, auth.NewAllowList("alice"),
		claims.WithEmitter(notify.NewEmitter(s)),
		claims.WithOperationIDs(testutil.NewSequenceGenerator("op")),
	)
	id, err := svc.CreateClaim(ctx, "alice", "alice", "POL-1", []string{"doc://a"})
	require.NoError(t, err)
	require.NoError(t, svc.AddDocument(ctx, "alice", id, "doc://b"))
	require.NoError(t, svc.UpdateStatus(ctx, "alice", id, claims.StatusDenied))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	last, err := reopened.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	svc = claims.New(reopened, auth.NewAllowList("alice"),
		claims.WithEmitter(notify.NewEmitter(reopened, notify.WithSequencer(notify.NewClockAt(last)))),
	)
	c, err := svc.GetClaim(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc://a", "doc://b"}, c.Documents)
	assert.Equal(t, claims.StatusDenied, c.Status)

	next, err := svc.CreateClaim(ctx, "alice", "alice", "POL-2", nil)
	require.NoError(t, err)
	assert.Equal(t, claims.ID(2), next)

	entries, err := reopened.ReadNotifications(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, int64(4), entries[3].Seq)

	report, err := reopened.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestSQLMock_BeginFailureIsReturned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("disk I/O error"))

	s := newWithDB(db)
	err = s.Update(context.Background(), func(kv.Txn) error { return nil })
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CommitFailureSurfacesAsStoreError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \?`).
		WithArgs("claimledger/counter").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec(`INSERT INTO kv`).
		WithArgs("claimledger/counter", []byte("1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO kv`).
		WithArgs("claimledger/claim/00000000000000000001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	rec := &notify.Recorder{}
	svc := claims.New(newWithDB(db), auth.NewAllowList("alice"), claims.WithEmitter(notify.NewEmitter(rec)))

	_, err = svc.CreateClaim(context.Background(), "alice", "alice", "POL-1", nil)
	require.Error(t, err)
	assert.True(t, claims.IsStoreError(err))
	assert.ErrorContains(t, err, "database is locked")
	assert.Zero(t, rec.Len(), "no notification for an uncommitted unit")
}

func TestSQLMock_GetFailureSurfacesAsStoreError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \?`).
		WillReturnError(errors.New("malformed database"))
	mock.ExpectRollback()

	svc := claims.New(newWithDB(db), auth.NewAllowList("alice"))
	_, err = svc.GetClaim(context.Background(), 1)
	assert.True(t, claims.IsStoreError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
