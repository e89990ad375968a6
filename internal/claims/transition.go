package claims

import (
	"context"
	"fmt"

	"github.com/roach88/claimledger/internal/kv"
	"github.com/roach88/claimledger/internal/notify"
)

// UpdateStatus moves the claim to newStatus, subject to the transition
// policy in Rules.
func (s *Service) UpdateStatus(ctx context.Context, caller Principal, id ID, newStatus Status) (err error) {
	ctx, op := s.begin(ctx, OpUpdateStatus, callerAttr(caller))
	op.setClaim(id)
	defer func() { op.end(err) }()

	if err := s.authorize(ctx, caller); err != nil {
		return err
	}
	if !newStatus.Valid() {
		return invalidArgument("invalid status value %d", uint8(newStatus))
	}

	var previous Status
	err = s.store.Update(ctx, func(txn kv.Txn) error {
		c, err := loadClaim(txn, id)
		if err != nil {
			return err
		}
		if !s.rules.Transitions.Allows(c.Status, newStatus) {
			return &Error{
				Code:    CodeInvalidTransition,
				Message: fmt.Sprintf("%s -> %s is not allowed", c.Status, newStatus),
				ClaimID: id,
			}
		}
		previous = c.Status
		c.Status = newStatus
		c.Version++
		return writeClaim(txn, c)
	})
	if err != nil {
		return storeFailure(id, err)
	}

	s.logger.Debug("claim status updated",
		"claim_id", id,
		"operation_id", op.id,
		"from", previous.String(),
		"to", newStatus.String(),
	)
	s.emit(ctx, op, notify.KindStatusUpdated, id,
		notify.Field{Name: notify.FieldNewStatus, Value: newStatus.String()},
	)
	return nil
}

// UpdateStatusByName parses name and calls UpdateStatus. Parse failures are
// InvalidArgument, reported after the caller is verified.
func (s *Service) UpdateStatusByName(ctx context.Context, caller Principal, id ID, name string) error {
	status, err := ParseStatus(name)
	if err != nil {
		if verr := s.authorize(ctx, caller); verr != nil {
			return verr
		}
		return err
	}
	return s.UpdateStatus(ctx, caller, id, status)
}
