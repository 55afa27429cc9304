package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/robalyx/shopledger/internal/database/types"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ShopModel handles database operations for shops.
type ShopModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewShop creates a new shop model.
func NewShop(db *bun.DB, logger *zap.Logger) *ShopModel {
	return &ShopModel{
		db:     db,
		logger: logger.Named("db_shop"),
	}
}

// CreateShop inserts a shop and fills in its generated ID.
func (r *ShopModel) CreateShop(ctx context.Context, shop *types.Shop) error {
	_, err := r.db.NewInsert().
		Model(shop).
		Returning("id, created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create shop: %w", err)
	}

	r.logger.Debug("Created shop",
		zap.Int64("shopID", shop.ID),
		zap.String("name", shop.Name))

	return nil
}

// GetShopByID retrieves a shop by its ID.
// Returns reputation.ErrShopNotFound if the shop does not exist.
func (r *ShopModel) GetShopByID(ctx context.Context, shopID int64) (*types.Shop, error) {
	var shop types.Shop
	err := r.db.NewSelect().
		Model(&shop).
		Where("id = ?", shopID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", reputation.ErrShopNotFound, shopID)
		}
		return nil, fmt.Errorf("failed to get shop %d: %w", shopID, err)
	}

	return &shop, nil
}

// GetShopsByIDs retrieves shops by their IDs. Missing IDs are left out of the map.
func (r *ShopModel) GetShopsByIDs(ctx context.Context, shopIDs []int64) (map[int64]*types.Shop, error) {
	result := make(map[int64]*types.Shop, len(shopIDs))
	if len(shopIDs) == 0 {
		return result, nil
	}

	var shops []*types.Shop
	err := r.db.NewSelect().
		Model(&shops).
		Where("id IN (?)", bun.In(shopIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get shops: %w", err)
	}

	for _, shop := range shops {
		result[shop.ID] = shop
	}

	return result, nil
}
