package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/claimledger/internal/canonical"
	"github.com/roach88/claimledger/internal/notify"
)

var _ notify.Sink = (*Store)(nil)

// Entry is one journal row.
type Entry struct {
	notify.Notification
	PrevDigest string `json:"prev_digest"`
	Digest     string `json:"digest"`
}

// Filter selects journal rows. Zero fields match everything.
type Filter struct {
	ClaimID  uint64
	Kind     notify.Kind
	AfterSeq int64
	Limit    int
}

// entryObject is the canonical form hashed into the chain.
func entryObject(n notify.Notification) canonical.Object {
	fields := make(canonical.Array, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = canonical.Object{
			"name":  canonical.String(f.Name),
			"value": canonical.String(f.Value),
		}
	}
	return canonical.Object{
		"seq":          canonical.Int(n.Seq),
		"operation_id": canonical.String(n.OperationID),
		"kind":         canonical.String(string(n.Kind)),
		"claim_id":     canonical.Int(int64(n.ClaimID)),
		"fields":       fields,
	}
}

// Append implements notify.Sink. The journal owns ordering: the row is
// stored at the head's seq plus one, whatever n.Seq says, and linked to
// the previous row's digest inside one transaction. Several handles or
// processes may append to the same file.
func (s *Store) Append(ctx context.Context, n notify.Notification) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append notification: begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastSeq int64
	var prev string
	err = tx.QueryRowContext(ctx, `
		SELECT seq, digest FROM notifications ORDER BY seq DESC LIMIT 1
	`).Scan(&lastSeq, &prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("append notification: read head: %w", err)
	}
	n.Seq = lastSeq + 1

	entry := entryObject(n)
	fieldsJSON, err := canonical.Marshal(entry["fields"])
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	digest, err := canonical.ChainDigest(prev, entry)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications
		(seq, operation_id, kind, claim_id, fields, prev_digest, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		n.Seq,
		n.OperationID,
		string(n.Kind),
		int64(n.ClaimID),
		string(fieldsJSON),
		prev,
		digest,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append notification: commit: %w", err)
	}
	return nil
}

// LastSeq returns the highest journal seq, 0 when empty. An Emitter clock
// seeded with it continues the journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM notifications`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadNotifications returns journal rows matching f, ordered by seq.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadNotifications(ctx context.Context, f Filter) ([]Entry, error) {
	var where []string
	var args []any
	if f.ClaimID != 0 {
		where = append(where, "claim_id = ?")
		args = append(args, int64(f.ClaimID))
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := `SELECT seq, operation_id, kind, claim_id, fields, prev_digest, digest FROM notifications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e          Entry
		kind       string
		claimID    int64
		fieldsJSON string
	)
	err := row.Scan(&e.Seq, &e.OperationID, &kind, &claimID, &fieldsJSON, &e.PrevDigest, &e.Digest)
	if err != nil {
		return Entry{}, fmt.Errorf("scan notification: %w", err)
	}
	e.Kind = notify.Kind(kind)
	e.ClaimID = uint64(claimID)
	if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
		return Entry{}, fmt.Errorf("decode fields of seq %d: %w", e.Seq, err)
	}
	return e, nil
}

// ChainBreak describes one row whose digest does not verify.
type ChainBreak struct {
	Seq    int64  `json:"seq"`
	Reason string `json:"reason"`
}

// ChainReport is the result of VerifyChain.
type ChainReport struct {
	Entries int          `json:"entries"`
	Head    string       `json:"head"`
	Breaks  []ChainBreak `json:"breaks"`
}

// OK reports whether the whole chain verified.
func (r ChainReport) OK() bool {
	return len(r.Breaks) == 0
}

// VerifyChain walks the journal in seq order and recomputes every digest.
func (s *Store) VerifyChain(ctx context.Context) (ChainReport, error) {
	entries, err := s.ReadNotifications(ctx, Filter{})
	if err != nil {
		return ChainReport{}, fmt.Errorf("verify chain: %w", err)
	}
	return VerifyEntries(entries)
}

// VerifyEntries checks a complete, seq-ordered run of journal entries.
func VerifyEntries(entries []Entry) (ChainReport, error) {
	report := ChainReport{Entries: len(entries), Breaks: []ChainBreak{}}
	prev := ""
	for _, e := range entries {
		if e.PrevDigest != prev {
			report.Breaks = append(report.Breaks, ChainBreak{
				Seq:    e.Seq,
				Reason: fmt.Sprintf("prev_digest %.12s does not match preceding digest %.12s", e.PrevDigest, prev),
			})
		}
		want, err := canonical.ChainDigest(e.PrevDigest, entryObject(e.Notification))
		if err != nil {
			return ChainReport{}, fmt.Errorf("verify chain: seq %d: %w", e.Seq, err)
		}
		if want != e.Digest {
			report.Breaks = append(report.Breaks, ChainBreak{
				Seq:    e.Seq,
				Reason: "digest does not match row contents",
			})
		}
		prev = e.Digest
	}
	report.Head = prev
	return report, nil
}
