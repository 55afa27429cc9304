package database

import (
	"github.com/robalyx/shopledger/internal/cache"
	"github.com/robalyx/shopledger/internal/database/dbretry"
	"github.com/robalyx/shopledger/internal/database/service"
	"github.com/robalyx/shopledger/internal/setup/config"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	shop       *service.ShopService
	reputation *service.ReputationService
}

// NewService creates a new service instance with all services.
func NewService(
	db *bun.DB, repository *Repository, standings *cache.StandingCache, cfg *config.Config, logger *zap.Logger,
) *Service {
	return &Service{
		shop: service.NewShop(repository.Shop(), logger),
		reputation: service.NewReputation(
			db,
			repository.Reputation(),
			repository.Shop(),
			standings,
			dbretry.PolicyFromConfig(&cfg.Retry),
			cfg.Reputation.HistoryPageSize,
			logger,
		),
	}
}

// Shop returns the shop service.
func (s *Service) Shop() *service.ShopService {
	return s.shop
}

// Reputation returns the reputation service.
func (s *Service) Reputation() *service.ReputationService {
	return s.reputation
}
