// Package audit replays the notification journal and compares the result
// with the stored claims.
//
// Notifications are emitted after commit and may be dropped, so the journal
// is an approximation of the registry. Drift is reported, never repaired.
//
// claim_created does not carry the initial documents, so the replay can
// only check that journaled document additions form the tail of the stored
// document list.
package audit

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/claimledger/internal/canonical"
	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/notify"
	"github.com/roach88/claimledger/internal/store"
)

// Replayed is the claim state reconstructed from journal entries.
type Replayed struct {
	ID           claims.ID
	Created      bool
	Claimant     string
	PolicyNumber string
	Appended     []string
	Status       claims.Status
	Mutations    int
}

// Drift is one disagreement between journal and store.
type Drift struct {
	ClaimID claims.ID `json:"claim_id"`
	Field   string    `json:"field"`
	Journal string    `json:"journal"`
	Stored  string    `json:"stored"`
}

// Report is the outcome of an audit.
type Report struct {
	Claims  int               `json:"claims"`
	Entries int               `json:"entries"`
	Chain   store.ChainReport `json:"chain"`
	Drift   []Drift           `json:"drift"`
}

// OK reports whether the chain verified and no drift was found.
func (r Report) OK() bool {
	return r.Chain.OK() && len(r.Drift) == 0
}

// Source lists every stored claim.
type Source interface {
	ListClaims(ctx context.Context, after claims.ID, limit int) ([]claims.Claim, error)
}

// Journal reads the notification journal.
type Journal interface {
	ReadNotifications(ctx context.Context, f store.Filter) ([]store.Entry, error)
}

// Run audits src against j.
func Run(ctx context.Context, src Source, j Journal) (Report, error) {
	entries, err := j.ReadNotifications(ctx, store.Filter{})
	if err != nil {
		return Report{}, fmt.Errorf("audit: read journal: %w", err)
	}
	chain, err := store.VerifyEntries(entries)
	if err != nil {
		return Report{}, fmt.Errorf("audit: %w", err)
	}

	stored, err := listAll(ctx, src)
	if err != nil {
		return Report{}, fmt.Errorf("audit: list claims: %w", err)
	}

	notes := make([]notify.Notification, len(entries))
	for i, e := range entries {
		notes[i] = e.Notification
	}
	return Report{
		Claims:  len(stored),
		Entries: len(entries),
		Chain:   chain,
		Drift:   Compare(Replay(notes), stored),
	}, nil
}

func listAll(ctx context.Context, src Source) ([]claims.Claim, error) {
	var all []claims.Claim
	var after claims.ID
	for {
		page, err := src.ListClaims(ctx, after, claims.MaxListLimit)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < claims.MaxListLimit {
			return all, nil
		}
		after = page[len(page)-1].ID
	}
}

// Replay folds notifications, in seq order, into per-claim state.
func Replay(notes []notify.Notification) map[claims.ID]*Replayed {
	out := make(map[claims.ID]*Replayed)
	for _, n := range notes {
		id := claims.ID(n.ClaimID)
		r, ok := out[id]
		if !ok {
			r = &Replayed{ID: id, Status: claims.StatusPending}
			out[id] = r
		}
		switch n.Kind {
		case notify.KindClaimCreated:
			r.Created = true
			r.Claimant, _ = n.Field(notify.FieldClaimant)
			r.PolicyNumber, _ = n.Field(notify.FieldPolicyNumber)
		case notify.KindDocumentAdded:
			ref, _ := n.Field(notify.FieldDocumentURL)
			r.Appended = append(r.Appended, ref)
			r.Mutations++
		case notify.KindStatusUpdated:
			name, _ := n.Field(notify.FieldNewStatus)
			if s, err := claims.ParseStatus(name); err == nil {
				r.Status = s
			}
			r.Mutations++
		}
	}
	return out
}

// Compare lists every disagreement between replayed and stored claims,
// ordered by claim id.
func Compare(replayed map[claims.ID]*Replayed, stored []claims.Claim) []Drift {
	drift := []Drift{}
	seen := make(map[claims.ID]bool, len(stored))

	for _, c := range stored {
		seen[c.ID] = true
		r, ok := replayed[c.ID]
		if !ok || !r.Created {
			drift = append(drift, Drift{ClaimID: c.ID, Field: "claim_created", Journal: "missing", Stored: "present"})
			if !ok {
				continue
			}
		}
		drift = append(drift, compareOne(r, c)...)
	}

	var orphans []claims.ID
	for id := range replayed {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	slices.Sort(orphans)
	for _, id := range orphans {
		drift = append(drift, Drift{ClaimID: id, Field: "claim", Journal: "present", Stored: "missing"})
	}

	slices.SortStableFunc(drift, func(a, b Drift) int {
		return cmp.Compare(a.ClaimID, b.ClaimID)
	})
	return drift
}

// compareOne checks one claim. Journal strings are NFC normalized, so
// stored strings are normalized before comparing.
func compareOne(r *Replayed, c claims.Claim) []Drift {
	var out []Drift
	add := func(field, journal, stored string) {
		out = append(out, Drift{ClaimID: c.ID, Field: field, Journal: journal, Stored: stored})
	}

	if r.Created {
		if r.Claimant != canonical.Normalize(string(c.Claimant)) {
			add("claimant", r.Claimant, string(c.Claimant))
		}
		if r.PolicyNumber != canonical.Normalize(c.PolicyNumber) {
			add("policy_number", r.PolicyNumber, c.PolicyNumber)
		}
	}

	docs := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		docs[i] = canonical.Normalize(d)
	}
	if len(r.Appended) > len(docs) || !slices.Equal(r.Appended, docs[len(docs)-len(r.Appended):]) {
		add("documents", fmt.Sprintf("%q appended", r.Appended), fmt.Sprintf("%q", c.Documents))
	}

	if r.Status != c.Status {
		add("status", r.Status.String(), c.Status.String())
	}

	if want := uint64(1 + r.Mutations); r.Created && want != c.Version {
		add("version", strconv.FormatUint(want, 10), strconv.FormatUint(c.Version, 10))
	}
	return out
}
