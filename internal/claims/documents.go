package claims

import (
	"context"

	"github.com/roach88/claimledger/internal/kv"
	"github.com/roach88/claimledger/internal/notify"
)

// AddDocument appends documentRef to the claim's document list. Existing
// entries are never reordered or removed; duplicates are kept.
func (s *Service) AddDocument(ctx context.Context, caller Principal, id ID, documentRef string) (err error) {
	ctx, op := s.begin(ctx, OpAddDocument, callerAttr(caller))
	op.setClaim(id)
	defer func() { op.end(err) }()

	if err := s.authorize(ctx, caller); err != nil {
		return err
	}
	if err := s.rules.validateDocument(documentRef); err != nil {
		return err
	}

	var count int
	err = s.store.Update(ctx, func(txn kv.Txn) error {
		c, err := loadClaim(txn, id)
		if err != nil {
			return err
		}
		if err := s.rules.Limits.checkDocumentCount(len(c.Documents) + 1); err != nil {
			return err
		}
		c.Documents = append(c.Documents, documentRef)
		c.Version++
		count = len(c.Documents)
		return writeClaim(txn, c)
	})
	if err != nil {
		return storeFailure(id, err)
	}

	s.logger.Debug("document added",
		"claim_id", id,
		"operation_id", op.id,
		"documents", count,
	)
	s.emit(ctx, op, notify.KindDocumentAdded, id,
		notify.Field{Name: notify.FieldDocumentURL, Value: documentRef},
	)
	return nil
}
