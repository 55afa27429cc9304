// Package reputation implements the bounded shop reputation score, its tier
// labels and penalty table, and the transactional apply-delta operation that
// keeps an append-only audit trail of every score change.
package reputation

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// MinScore is the lowest reputation a shop can hold.
	MinScore = 0.0
	// MaxScore is the highest reputation a shop can hold.
	MaxScore = 100.0
	// DefaultScore is used for shops that have never had a score set.
	DefaultScore = 40.0

	// scorePrecision is the number of decimal places kept on a score.
	scorePrecision = 1
)

// ClampScore rounds a raw value to the nearest 0.1 and clamps it into
// [MinScore, MaxScore]. NaN is treated as 0.
func ClampScore(raw float64) float64 {
	switch {
	case math.IsNaN(raw):
		return MinScore
	case math.IsInf(raw, 1):
		return MaxScore
	case math.IsInf(raw, -1):
		return MinScore
	}

	rounded := decimal.NewFromFloat(raw).Round(scorePrecision).InexactFloat64()
	return math.Max(MinScore, math.Min(MaxScore, rounded))
}

// Tier is the human-facing category derived from a score.
type Tier string

const (
	TierDiamond  Tier = "Diamond Shop"
	TierGold     Tier = "Gold Shop"
	TierSilver   Tier = "Silver Shop"
	TierBronze   Tier = "Bronze Shop"
	TierAtRisk   Tier = "At-risk Shop"
	TierLowTrust Tier = "Low-trust Shop"
)

// tierThresholds is ordered highest first; the first threshold a score meets wins.
var tierThresholds = []struct { //nolint:gochecknoglobals // -
	min  float64
	tier Tier
}{
	{90, TierDiamond},
	{80, TierGold},
	{60, TierSilver},
	{40, TierBronze},
	{20, TierAtRisk},
}

// TierForScore classifies a score. NaN falls into the lowest tier.
func TierForScore(score float64) Tier {
	if math.IsNaN(score) {
		return TierLowTrust
	}

	for _, t := range tierThresholds {
		if score >= t.min {
			return t.tier
		}
	}

	return TierLowTrust
}

// TitleForScore returns the display label for a score.
func TitleForScore(score float64) string {
	return string(TierForScore(score))
}
