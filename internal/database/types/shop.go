package types

import (
	"time"

	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Shop is a seller whose reputation is tracked by the ledger.
type Shop struct {
	bun.BaseModel `bun:"table:shops,alias:s"`

	ID                  int64               `bun:",pk,autoincrement"                          json:"id"`
	Name                string              `bun:",notnull"                                   json:"name"`
	ReputationScore     decimal.NullDecimal `bun:"reputation_score,type:numeric"              json:"reputationScore"` // NULL until first scored
	ReputationUpdatedAt time.Time           `bun:",nullzero"                                  json:"reputationUpdatedAt"`
	CreatedAt           time.Time           `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Score returns the persisted score, or nil if the shop was never scored.
func (s *Shop) Score() *float64 {
	if !s.ReputationScore.Valid {
		return nil
	}
	score := s.ReputationScore.Decimal.InexactFloat64()
	return &score
}

// Standing returns the display view of the shop's reputation.
func (s *Shop) Standing() *reputation.Standing {
	return reputation.NewStanding(s.ID, s.Score(), s.ReputationUpdatedAt)
}
