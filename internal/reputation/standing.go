package reputation

import "time"

// Standing is the read-side view of a shop's reputation used for display.
type Standing struct {
	ShopID    int64     `json:"shopId"`
	Score     float64   `json:"score"`
	Title     string    `json:"title"`
	Defaulted bool      `json:"defaulted"` // true when the shop was never scored
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewStanding builds a standing from a persisted score. A nil score reads as
// DefaultScore.
func NewStanding(shopID int64, score *float64, updatedAt time.Time) *Standing {
	standing := &Standing{
		ShopID:    shopID,
		Score:     DefaultScore,
		Defaulted: score == nil,
		UpdatedAt: updatedAt,
	}
	if score != nil {
		standing.Score = *score
	}
	standing.Title = TitleForScore(standing.Score)

	return standing
}
