package reputation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrShopNotFound is returned when the target shop does not exist. No writes
// have been made when it is returned, so the caller decides whether the
// enclosing transaction should be aborted.
var ErrShopNotFound = errors.New("shop not found")

// UnitOfWork is the caller's transaction as seen by the ledger.
// Implementations must serialize concurrent LockShopScore calls for the same
// shop until the surrounding transaction ends.
type UnitOfWork interface {
	// LockShopScore reads the current score under a row lock. A nil score
	// means the shop exists but has never been scored.
	LockShopScore(ctx context.Context, shopID int64) (*float64, error)
	// UpdateShopScore persists the score and its update timestamp.
	UpdateShopScore(ctx context.Context, shopID int64, score float64, at time.Time) error
	// AppendEvent inserts a ledger entry.
	AppendEvent(ctx context.Context, event *Event) error
}

// ApplyDelta moves a shop's score by delta inside the caller's unit of work.
//
// The score is always written back, even when it does not change, so that
// the update timestamp reflects the latest evaluation. An event is appended
// when the score moves or when meta.ForceLog is set. Non-finite deltas are
// treated as 0.
func ApplyDelta(
	ctx context.Context, uow UnitOfWork, shopID int64, delta float64, meta *EventMeta,
) (*Transition, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		delta = 0
	}

	current, err := uow.LockShopScore(ctx, shopID)
	if err != nil {
		if errors.Is(err, ErrShopNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read shop score: %w", err)
	}

	before := DefaultScore
	if current != nil {
		before = *current
	}

	transition := &Transition{
		Before: before,
		After:  ClampScore(before + delta),
	}

	now := time.Now()
	if err := uow.UpdateShopScore(ctx, shopID, transition.After, now); err != nil {
		return nil, fmt.Errorf("failed to update shop score: %w", err)
	}

	if transition.Changed() || (meta != nil && meta.ForceLog) {
		if err := uow.AppendEvent(ctx, newEvent(shopID, delta, transition, meta, now)); err != nil {
			return nil, fmt.Errorf("failed to append reputation event: %w", err)
		}
		transition.Logged = true
	}

	return transition, nil
}

// ApplyPenalty applies the negated penalty for a severity level.
func ApplyPenalty(
	ctx context.Context, uow UnitOfWork, shopID int64, severity Severity, meta *EventMeta,
) (*Transition, error) {
	return ApplyDelta(ctx, uow, shopID, -PenaltyForSeverity(severity), meta)
}
