package claims

import (
	"context"

	"github.com/roach88/claimledger/internal/kv"
	"github.com/roach88/claimledger/internal/notify"
)

// List bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// CreateClaim registers a new Pending claim and returns its id.
//
// The counter read, counter write and claim write happen in one unit, so
// concurrent creations receive distinct consecutive ids.
func (s *Service) CreateClaim(ctx context.Context, caller, claimant Principal, policyNumber string, initialDocuments []string) (_ ID, err error) {
	ctx, op := s.begin(ctx, OpCreateClaim, callerAttr(caller))
	defer func() { op.end(err) }()

	if err := s.authorize(ctx, caller); err != nil {
		return 0, err
	}

	docs := append([]string{}, initialDocuments...)
	if err := s.rules.validateCreate(claimant, policyNumber, docs); err != nil {
		return 0, err
	}

	var created Claim
	err = s.store.Update(ctx, func(txn kv.Txn) error {
		last, err := readCounter(txn)
		if err != nil {
			return err
		}
		id, err := nextID(last)
		if err != nil {
			return err
		}
		created = Claim{
			ID:           id,
			Claimant:     claimant,
			PolicyNumber: policyNumber,
			Documents:    docs,
			Status:       StatusPending,
			Version:      1,
		}
		if err := writeCounter(txn, id); err != nil {
			return err
		}
		return writeClaim(txn, created)
	})
	if err != nil {
		return 0, storeFailure(0, err)
	}
	op.setClaim(created.ID)

	s.logger.Debug("claim created",
		"claim_id", created.ID,
		"operation_id", op.id,
		"documents", len(created.Documents),
	)
	s.emit(ctx, op, notify.KindClaimCreated, created.ID,
		notify.Field{Name: notify.FieldClaimant, Value: string(created.Claimant)},
		notify.Field{Name: notify.FieldPolicyNumber, Value: created.PolicyNumber},
	)
	return created.ID, nil
}

// GetClaim returns the claim stored under id. Reads are not gated.
func (s *Service) GetClaim(ctx context.Context, id ID) (_ Claim, err error) {
	ctx, op := s.begin(ctx, OpGetClaim)
	op.setClaim(id)
	defer func() { op.end(err) }()

	var c Claim
	err = s.store.View(ctx, func(r kv.Reader) error {
		var err error
		c, err = loadClaim(r, id)
		return err
	})
	if err != nil {
		return Claim{}, storeFailure(id, err)
	}
	return c, nil
}

// ListClaims returns up to limit claims with ids greater than after, in id
// order. limit <= 0 means DefaultListLimit; it is capped at MaxListLimit.
func (s *Service) ListClaims(ctx context.Context, after ID, limit int) (_ []Claim, err error) {
	ctx, op := s.begin(ctx, OpListClaims)
	defer func() { op.end(err) }()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	out := []Claim{}
	err = s.store.View(ctx, func(r kv.Reader) error {
		last, err := readCounter(r)
		if err != nil {
			return err
		}
		for id := after + 1; id <= last && id > after && len(out) < limit; id++ {
			c, found, err := readClaim(r, id)
			if err != nil {
				return err
			}
			if found {
				out = append(out, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeFailure(0, err)
	}
	return out, nil
}

// LastID returns the most recently assigned claim id, 0 before any claim.
func (s *Service) LastID(ctx context.Context) (_ ID, err error) {
	ctx, op := s.begin(ctx, OpLastID)
	defer func() { op.end(err) }()

	var last ID
	err = s.store.View(ctx, func(r kv.Reader) error {
		var err error
		last, err = readCounter(r)
		return err
	})
	if err != nil {
		return 0, storeFailure(0, err)
	}
	return last, nil
}
