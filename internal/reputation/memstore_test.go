package reputation_test

import (
	"context"
	"sync"
	"time"

	"github.com/robalyx/shopledger/internal/reputation"
)

// memShop is a shop row with its own row lock.
type memShop struct {
	lock      sync.Mutex
	score     *float64
	updatedAt time.Time
	writes    int
}

// memStore is an in-memory stand-in for the shops and reputation_events tables.
type memStore struct {
	mu     sync.Mutex
	shops  map[int64]*memShop
	events []reputation.Event
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{shops: make(map[int64]*memShop)}
}

func (s *memStore) addShop(id int64, score *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops[id] = &memShop{score: score}
}

func (s *memStore) shop(id int64) *memShop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shops[id]
}

func (s *memStore) eventsFor(shopID int64) []reputation.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []reputation.Event
	for _, e := range s.events {
		if e.ShopID == shopID {
			out = append(out, e)
		}
	}
	return out
}

// begin starts a transaction. Row locks taken through it are released on commit.
func (s *memStore) begin() *memTx {
	return &memTx{store: s}
}

// memTx implements reputation.UnitOfWork with SELECT ... FOR UPDATE semantics.
type memTx struct {
	store  *memStore
	locked []*memShop

	failUpdate error
	failAppend error
}

func (tx *memTx) LockShopScore(_ context.Context, shopID int64) (*float64, error) {
	row := tx.store.shop(shopID)
	if row == nil {
		return nil, reputation.ErrShopNotFound
	}

	row.lock.Lock()
	tx.locked = append(tx.locked, row)

	if row.score == nil {
		return nil, nil
	}
	score := *row.score
	return &score, nil
}

func (tx *memTx) UpdateShopScore(_ context.Context, shopID int64, score float64, at time.Time) error {
	if tx.failUpdate != nil {
		return tx.failUpdate
	}

	row := tx.store.shop(shopID)
	row.score = &score
	row.updatedAt = at
	row.writes++
	return nil
}

func (tx *memTx) AppendEvent(_ context.Context, event *reputation.Event) error {
	if tx.failAppend != nil {
		return tx.failAppend
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	tx.store.nextID++
	event.ID = tx.store.nextID
	tx.store.events = append(tx.store.events, *event)
	return nil
}

func (tx *memTx) commit() {
	for _, row := range tx.locked {
		row.lock.Unlock()
	}
	tx.locked = nil
}

func ptr[T any](v T) *T {
	return &v
}
