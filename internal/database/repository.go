package database

import (
	"github.com/robalyx/shopledger/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	shop       *models.ShopModel
	reputation *models.ReputationModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		shop:       models.NewShop(db, logger),
		reputation: models.NewReputation(db, logger),
	}
}

// Shop returns the shop model repository.
func (r *Repository) Shop() *models.ShopModel {
	return r.shop
}

// Reputation returns the reputation model repository.
func (r *Repository) Reputation() *models.ReputationModel {
	return r.reputation
}
