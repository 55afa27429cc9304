package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/shopledger/internal/database/types"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ReputationModel handles database operations for shop scores and the
// reputation ledger.
type ReputationModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewReputation creates a new reputation model.
func NewReputation(db *bun.DB, logger *zap.Logger) *ReputationModel {
	return &ReputationModel{
		db:     db,
		logger: logger.Named("db_reputation"),
	}
}

// WithTx returns a unit of work bound to the given transaction.
// Passing the plain *bun.DB runs each statement on its own, which gives up the
// row lock between the read and the write.
func (r *ReputationModel) WithTx(tx bun.IDB) reputation.UnitOfWork {
	return &unitOfWork{tx: tx}
}

// unitOfWork implements reputation.UnitOfWork on top of a bun transaction.
type unitOfWork struct {
	tx bun.IDB
}

// LockShopScore reads the score with SELECT ... FOR UPDATE so that concurrent
// writers on the same shop queue behind this transaction.
func (u *unitOfWork) LockShopScore(ctx context.Context, shopID int64) (*float64, error) {
	var shop types.Shop
	err := u.tx.NewSelect().
		Model(&shop).
		Column("id", "reputation_score").
		Where("id = ?", shopID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reputation.ErrShopNotFound
		}
		return nil, err
	}

	return shop.Score(), nil
}

func (u *unitOfWork) UpdateShopScore(ctx context.Context, shopID int64, score float64, at time.Time) error {
	_, err := u.tx.NewUpdate().
		Model((*types.Shop)(nil)).
		Set("reputation_score = ?", decimal.NewFromFloat(score)).
		Set("reputation_updated_at = ?", at).
		Where("id = ?", shopID).
		Exec(ctx)
	return err
}

func (u *unitOfWork) AppendEvent(ctx context.Context, event *reputation.Event) error {
	row := types.NewReputationEvent(event)
	row.ID = 0

	_, err := u.tx.NewInsert().
		Model(row).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return err
	}

	event.ID = row.ID
	return nil
}

// GetEvents retrieves a page of a shop's history, newest first. Pass a nil
// cursor for the first page.
func (r *ReputationModel) GetEvents(
	ctx context.Context, shopID int64, cursor *types.EventCursor, limit int,
) (*types.EventPage, error) {
	limit = max(limit, 1)

	var rows []types.ReputationEvent
	query := r.db.NewSelect().
		Model(&rows).
		Where("shop_id = ?", shopID)

	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	// Fetch one extra row to know whether another page exists
	err := query.
		Order("created_at DESC", "id DESC").
		Limit(limit + 1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reputation events: %w", err)
	}

	page := &types.EventPage{}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = &types.EventCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		}
		rows = rows[:limit]
	}

	page.Events = make([]reputation.Event, 0, len(rows))
	for i := range rows {
		page.Events = append(page.Events, rows[i].ToEvent())
	}

	return page, nil
}

// GetAllEvents retrieves a shop's complete history in the order it was
// written. IDs come from a sequence and are assigned while the shop row is
// locked, so they follow the score chain even if the clock does not.
func (r *ReputationModel) GetAllEvents(ctx context.Context, shopID int64) ([]reputation.Event, error) {
	var rows []types.ReputationEvent
	err := r.db.NewSelect().
		Model(&rows).
		Where("shop_id = ?", shopID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reputation events: %w", err)
	}

	events := make([]reputation.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].ToEvent())
	}

	r.logger.Debug("Loaded reputation history",
		zap.Int64("shopID", shopID),
		zap.Int("events", len(events)))

	return events, nil
}
