package types

import (
	"time"

	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// ReputationEvent is an immutable row of the reputation ledger.
type ReputationEvent struct {
	bun.BaseModel `bun:"table:reputation_events,alias:re"`

	ID          int64           `bun:",pk,autoincrement"                           json:"id"`
	ShopID      int64           `bun:",notnull"                                    json:"shopId"`
	Delta       decimal.Decimal `bun:"delta,type:numeric,notnull"                  json:"delta"`
	BeforeScore decimal.Decimal `bun:"before_score,type:numeric,notnull"           json:"beforeScore"`
	AfterScore  decimal.Decimal `bun:"after_score,type:numeric,notnull"            json:"afterScore"`
	Source      string          `bun:",nullzero"                                   json:"source"`
	RefType     string          `bun:",nullzero"                                   json:"refType"`
	RefID       *int64          `json:"refId"`
	Note        string          `bun:",nullzero"                                   json:"note"`
	ActorID     *int64          `json:"actorId"`
	CreatedAt   time.Time       `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// NewReputationEvent converts a ledger event into its row form.
func NewReputationEvent(event *reputation.Event) *ReputationEvent {
	return &ReputationEvent{
		ID:          event.ID,
		ShopID:      event.ShopID,
		Delta:       decimal.NewFromFloat(event.Delta),
		BeforeScore: decimal.NewFromFloat(event.Before),
		AfterScore:  decimal.NewFromFloat(event.After),
		Source:      event.Source,
		RefType:     event.RefType,
		RefID:       event.RefID,
		Note:        event.Note,
		ActorID:     event.ActorID,
		CreatedAt:   event.CreatedAt,
	}
}

// ToEvent converts the row back into a ledger event.
func (e *ReputationEvent) ToEvent() reputation.Event {
	return reputation.Event{
		ID:        e.ID,
		ShopID:    e.ShopID,
		Delta:     e.Delta.InexactFloat64(),
		Before:    e.BeforeScore.InexactFloat64(),
		After:     e.AfterScore.InexactFloat64(),
		Source:    e.Source,
		RefType:   e.RefType,
		RefID:     e.RefID,
		Note:      e.Note,
		ActorID:   e.ActorID,
		CreatedAt: e.CreatedAt,
	}
}

// EventCursor marks a position in a shop's history, newest first.
type EventCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        int64     `json:"id"`
}

// EventPage is one page of a shop's history.
type EventPage struct {
	Events     []reputation.Event `json:"events"`
	NextCursor *EventCursor       `json:"nextCursor"` // nil on the last page
}
