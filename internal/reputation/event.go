package reputation

import (
	"strconv"
	"strings"
	"time"
)

// EventMeta is the optional provenance attached to a score change.
type EventMeta struct {
	Source  string // e.g. "complaint"
	RefType string // e.g. "ORDER"
	RefID   *int64
	Note    string
	ActorID *int64 // staff member or system actor; nil when unknown

	// ForceLog records an event even when the score does not move.
	ForceLog bool
}

// Event is one immutable entry in a shop's reputation history.
type Event struct {
	ID        int64
	ShopID    int64
	Delta     float64 // requested change before clamping
	Before    float64
	After     float64
	Source    string
	RefType   string
	RefID     *int64
	Note      string
	ActorID   *int64
	CreatedAt time.Time
}

// Transition is the outcome of applying a delta.
type Transition struct {
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Logged bool    `json:"logged"`
}

// Changed reports whether the score moved.
func (t *Transition) Changed() bool {
	return t.Before != t.After
}

// ParseOptionalID converts loosely typed input into an optional identifier.
// Blank or non-numeric input yields nil.
func ParseOptionalID(input string) *int64 {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return nil
		}
		id = int64(f)
	}

	return &id
}

// newEvent builds the ledger entry for a transition.
func newEvent(shopID int64, delta float64, t *Transition, meta *EventMeta, at time.Time) *Event {
	event := &Event{
		ShopID:    shopID,
		Delta:     delta,
		Before:    t.Before,
		After:     t.After,
		CreatedAt: at,
	}

	if meta != nil {
		event.Source = meta.Source
		event.RefType = meta.RefType
		event.RefID = meta.RefID
		event.Note = meta.Note
		event.ActorID = meta.ActorID
	}

	return event
}
