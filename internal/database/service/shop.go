package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/shopledger/internal/database/models"
	"github.com/robalyx/shopledger/internal/database/types"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/robalyx/shopledger/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidShopName indicates that a shop name is blank.
var ErrInvalidShopName = errors.New("shop name must not be empty")

// MaxShopNameLength is the longest shop name stored, in runes.
const MaxShopNameLength = 128

// ShopService handles shop-related business logic.
type ShopService struct {
	model  *models.ShopModel
	logger *zap.Logger
}

// NewShop creates a new shop service.
func NewShop(model *models.ShopModel, logger *zap.Logger) *ShopService {
	return &ShopService{
		model:  model,
		logger: logger.Named("shop_service"),
	}
}

// CreateShop registers a shop. A nil initialScore leaves the shop unscored so
// it reads as the default score until its first change. An explicit score is
// clamped onto the valid grid.
func (s *ShopService) CreateShop(ctx context.Context, name string, initialScore *float64) (*types.Shop, error) {
	name = utils.TruncateRunes(utils.CompressAllWhitespace(name), MaxShopNameLength)
	if name == "" {
		return nil, ErrInvalidShopName
	}

	shop := &types.Shop{Name: name}
	if initialScore != nil {
		score := reputation.ClampScore(*initialScore)
		shop.ReputationScore = decimal.NewNullDecimal(decimal.NewFromFloat(score))
		shop.ReputationUpdatedAt = time.Now()
	}

	if err := s.model.CreateShop(ctx, shop); err != nil {
		return nil, err
	}

	s.logger.Info("Created shop",
		zap.Int64("shopID", shop.ID),
		zap.String("name", shop.Name),
		zap.Bool("scored", initialScore != nil))

	return shop, nil
}

// GetShop retrieves a shop by ID.
func (s *ShopService) GetShop(ctx context.Context, shopID int64) (*types.Shop, error) {
	shop, err := s.model.GetShopByID(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}
	return shop, nil
}
