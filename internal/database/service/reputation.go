package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robalyx/shopledger/internal/cache"
	"github.com/robalyx/shopledger/internal/database/dbretry"
	"github.com/robalyx/shopledger/internal/database/models"
	"github.com/robalyx/shopledger/internal/database/types"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/sourcegraph/conc/pool"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// maxStandingLookups bounds concurrent lookups in GetStandings.
const maxStandingLookups = 8

// ReputationService handles reputation-related business logic.
type ReputationService struct {
	db        *bun.DB
	model     *models.ReputationModel
	shopModel *models.ShopModel
	standings *cache.StandingCache
	policy    dbretry.Policy
	pageSize  int
	logger    *zap.Logger
}

// NewReputation creates a new reputation service.
func NewReputation(
	db *bun.DB,
	model *models.ReputationModel,
	shopModel *models.ShopModel,
	standings *cache.StandingCache,
	policy dbretry.Policy,
	pageSize int,
	logger *zap.Logger,
) *ReputationService {
	return &ReputationService{
		db:        db,
		model:     model,
		shopModel: shopModel,
		standings: standings,
		policy:    policy,
		pageSize:  pageSize,
		logger:    logger.Named("reputation_service"),
	}
}

// ApplyDelta moves a shop's score in its own transaction. The whole
// transaction is re-run on transient failures that happen before the commit
// and on serialization failures or deadlocks. A commit whose outcome is
// unknown is reported as dbretry.ErrCommitUnknown and never re-run.
func (s *ReputationService) ApplyDelta(
	ctx context.Context, shopID int64, delta float64, meta *reputation.EventMeta,
) (*reputation.Transition, error) {
	var transition *reputation.Transition

	err := dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		var err error
		transition, err = s.ApplyDeltaTx(ctx, tx, shopID, delta, meta)
		return err
	})
	if err != nil {
		if errors.Is(err, reputation.ErrShopNotFound) {
			return nil, fmt.Errorf("%w: %d", reputation.ErrShopNotFound, shopID)
		}
		if errors.Is(err, dbretry.ErrCommitUnknown) {
			// The score may have moved, drop whatever is cached
			s.InvalidateStandings(ctx, shopID)
			s.logger.Error("Reputation delta commit outcome unknown",
				zap.Int64("shopID", shopID),
				zap.Float64("delta", delta),
				zap.Error(err))
		}
		return nil, fmt.Errorf("failed to apply reputation delta: %w", err)
	}

	s.InvalidateStandings(ctx, shopID)

	s.logger.Info("Applied reputation delta",
		zap.Int64("shopID", shopID),
		zap.Float64("delta", delta),
		zap.Float64("before", transition.Before),
		zap.Float64("after", transition.After),
		zap.Bool("logged", transition.Logged))

	return transition, nil
}

// ApplyDeltaTx applies a delta inside a transaction owned by the caller.
// The caller should call InvalidateStandings once the transaction commits.
func (s *ReputationService) ApplyDeltaTx(
	ctx context.Context, tx bun.IDB, shopID int64, delta float64, meta *reputation.EventMeta,
) (*reputation.Transition, error) {
	return reputation.ApplyDelta(ctx, s.model.WithTx(tx), shopID, delta, meta)
}

// PenalizeShop lowers a shop's score by the penalty for a severity level.
// Unknown levels are charged the lightest penalty.
func (s *ReputationService) PenalizeShop(
	ctx context.Context, shopID int64, severity reputation.Severity, meta *reputation.EventMeta,
) (*reputation.Transition, error) {
	if !severity.IsKnown() {
		s.logger.Warn("Unknown severity, applying lightest penalty",
			zap.Int64("shopID", shopID),
			zap.String("severity", string(severity)))
	}

	return s.ApplyDelta(ctx, shopID, -reputation.PenaltyForSeverity(severity), meta)
}

// GetStanding returns a shop's current score and title.
func (s *ReputationService) GetStanding(ctx context.Context, shopID int64) (*reputation.Standing, error) {
	return s.standings.Load(ctx, shopID, func(ctx context.Context) (*reputation.Standing, error) {
		shop, err := s.shopModel.GetShopByID(ctx, shopID)
		if err != nil {
			return nil, err
		}
		return shop.Standing(), nil
	})
}

// GetStandings returns the standings of several shops. Shops that do not
// exist are left out of the result.
func (s *ReputationService) GetStandings(
	ctx context.Context, shopIDs []int64,
) (map[int64]*reputation.Standing, error) {
	result := make(map[int64]*reputation.Standing, len(shopIDs))

	var mu sync.Mutex
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(maxStandingLookups)

	for _, shopID := range shopIDs {
		p.Go(func(ctx context.Context) error {
			standing, err := s.GetStanding(ctx, shopID)
			if err != nil {
				if errors.Is(err, reputation.ErrShopNotFound) {
					return nil
				}
				return fmt.Errorf("failed to get standing for shop %d: %w", shopID, err)
			}

			mu.Lock()
			result[shopID] = standing
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetEvents returns a page of a shop's history, newest first. A limit of 0
// uses the configured page size.
func (s *ReputationService) GetEvents(
	ctx context.Context, shopID int64, cursor *types.EventCursor, limit int,
) (*types.EventPage, error) {
	if limit <= 0 {
		limit = s.pageSize
	}

	return s.model.GetEvents(ctx, shopID, cursor, limit)
}

// VerifyHistory replays a shop's history and checks it against the
// persisted score.
func (s *ReputationService) VerifyHistory(ctx context.Context, shopID int64) (*reputation.AuditReport, error) {
	shop, err := s.shopModel.GetShopByID(ctx, shopID)
	if err != nil {
		return nil, err
	}

	events, err := s.model.GetAllEvents(ctx, shopID)
	if err != nil {
		return nil, err
	}

	report := reputation.VerifyChain(shopID, events, shop.Score())
	if !report.OK() {
		s.logger.Warn("Reputation history failed verification",
			zap.Int64("shopID", shopID),
			zap.Int("events", report.Events),
			zap.Int("issues", len(report.Issues)))
	}

	return report, nil
}

// InvalidateStandings drops cached standings. Failures are logged since the
// cache entries expire on their own.
func (s *ReputationService) InvalidateStandings(ctx context.Context, shopIDs ...int64) {
	if err := s.standings.Invalidate(ctx, shopIDs...); err != nil {
		s.logger.Warn("Failed to invalidate cached standings",
			zap.Int64s("shopIDs", shopIDs),
			zap.Error(err))
	}
}
