package types_test

import (
	"testing"
	"time"

	"github.com/robalyx/shopledger/internal/database/types"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReputationEventKeepsGridValues(t *testing.T) {
	t.Parallel()

	refID := int64(77)
	event := &reputation.Event{
		ShopID:    5,
		Delta:     0.26,
		Before:    40,
		After:     40.3,
		Source:    "complaint",
		RefID:     &refID,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	row := types.NewReputationEvent(event)
	assert.Equal(t, "0.26", row.Delta.String())
	assert.Equal(t, "40.3", row.AfterScore.String())

	back := row.ToEvent()
	assert.Equal(t, *event, back)
}

func TestShopScore(t *testing.T) {
	t.Parallel()

	shop := &types.Shop{ID: 1}
	assert.Nil(t, shop.Score())
	assert.True(t, shop.Standing().Defaulted)
	assert.Equal(t, "Bronze Shop", shop.Standing().Title)

	shop.ReputationScore = decimal.NewNullDecimal(decimal.RequireFromString("80.5"))
	require.NotNil(t, shop.Score())
	assert.InDelta(t, 80.5, *shop.Score(), 1e-9)
	assert.Equal(t, "Gold Shop", shop.Standing().Title)
}
