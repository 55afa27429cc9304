package reputation_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

var errWriteFailed = errors.New("write failed")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestApplyDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		initial    *float64
		delta      float64
		meta       *reputation.EventMeta
		wantBefore float64
		wantAfter  float64
		wantLogged bool
	}{
		{
			name:       "unscored shop defaults to 40",
			initial:    nil,
			delta:      -5,
			wantBefore: 40,
			wantAfter:  35,
			wantLogged: true,
		},
		{
			name:       "increase clamps at max",
			initial:    ptr(98.0),
			delta:      10,
			wantBefore: 98,
			wantAfter:  100,
			wantLogged: true,
		},
		{
			name:       "zero delta without force log",
			initial:    ptr(50.0),
			delta:      0,
			wantBefore: 50,
			wantAfter:  50,
			wantLogged: false,
		},
		{
			name:       "zero delta with force log",
			initial:    ptr(50.0),
			delta:      0,
			meta:       &reputation.EventMeta{ForceLog: true, Note: "manual review"},
			wantBefore: 50,
			wantAfter:  50,
			wantLogged: true,
		},
		{
			name:       "decrease clamps at min",
			initial:    ptr(1.5),
			delta:      -2,
			wantBefore: 1.5,
			wantAfter:  0,
			wantLogged: true,
		},
		{
			name:       "already at max stays silent",
			initial:    ptr(100.0),
			delta:      5,
			wantBefore: 100,
			wantAfter:  100,
			wantLogged: false,
		},
		{
			name:       "fractional delta is rounded",
			initial:    ptr(40.0),
			delta:      0.26,
			wantBefore: 40,
			wantAfter:  40.3,
			wantLogged: true,
		},
		{
			name:       "NaN delta is a no-op",
			initial:    ptr(62.0),
			delta:      math.NaN(),
			wantBefore: 62,
			wantAfter:  62,
			wantLogged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			store.addShop(1, tt.initial)

			start := time.Now()
			tx := store.begin()
			got, err := reputation.ApplyDelta(t.Context(), tx, 1, tt.delta, tt.meta)
			tx.commit()
			require.NoError(t, err)

			assert.InDelta(t, tt.wantBefore, got.Before, 1e-9)
			assert.InDelta(t, tt.wantAfter, got.After, 1e-9)
			assert.Equal(t, tt.wantLogged, got.Logged)

			// The score and timestamp are written even when nothing changed.
			row := store.shop(1)
			require.NotNil(t, row.score)
			assert.InDelta(t, tt.wantAfter, *row.score, 1e-9)
			assert.Equal(t, 1, row.writes)
			assert.False(t, row.updatedAt.Before(start))

			events := store.eventsFor(1)
			if !tt.wantLogged {
				assert.Empty(t, events)
				return
			}

			require.Len(t, events, 1)
			assert.InDelta(t, tt.wantBefore, events[0].Before, 1e-9)
			assert.InDelta(t, tt.wantAfter, events[0].After, 1e-9)
			assert.Equal(t, row.updatedAt, events[0].CreatedAt)
		})
	}
}

func TestApplyDeltaRecordsRawDelta(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addShop(9, ptr(98.0))

	tx := store.begin()
	_, err := reputation.ApplyDelta(t.Context(), tx, 9, 10, nil)
	tx.commit()
	require.NoError(t, err)

	events := store.eventsFor(9)
	require.Len(t, events, 1)
	assert.InDelta(t, 10.0, events[0].Delta, 1e-9)
	assert.InDelta(t, 100.0, events[0].After, 1e-9)
}

func TestApplyDeltaMetadata(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addShop(3, nil)

	meta := &reputation.EventMeta{
		Source:  "complaint",
		RefType: "ORDER",
		RefID:   reputation.ParseOptionalID("1234"),
		Note:    "late shipment",
		ActorID: reputation.ParseOptionalID("not-a-number"),
	}

	tx := store.begin()
	_, err := reputation.ApplyDelta(t.Context(), tx, 3, -1.5, meta)
	tx.commit()
	require.NoError(t, err)

	events := store.eventsFor(3)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, int64(3), event.ShopID)
	assert.InDelta(t, -1.5, event.Delta, 1e-9)
	assert.Equal(t, "complaint", event.Source)
	assert.Equal(t, "ORDER", event.RefType)
	require.NotNil(t, event.RefID)
	assert.Equal(t, int64(1234), *event.RefID)
	assert.Equal(t, "late shipment", event.Note)
	assert.Nil(t, event.ActorID)
}

func TestApplyDeltaShopNotFound(t *testing.T) {
	t.Parallel()

	store := newMemStore()

	tx := store.begin()
	got, err := reputation.ApplyDelta(t.Context(), tx, 404, -5, &reputation.EventMeta{ForceLog: true})
	tx.commit()

	require.ErrorIs(t, err, reputation.ErrShopNotFound)
	assert.Nil(t, got)
	assert.Empty(t, store.eventsFor(404))
}

func TestApplyDeltaWriteFailures(t *testing.T) {
	t.Parallel()

	t.Run("update fails", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.addShop(1, ptr(50.0))

		tx := store.begin()
		tx.failUpdate = errWriteFailed
		_, err := reputation.ApplyDelta(t.Context(), tx, 1, -3, nil)
		tx.commit()

		require.ErrorIs(t, err, errWriteFailed)
		assert.Empty(t, store.eventsFor(1))
	})

	t.Run("append fails", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.addShop(1, ptr(50.0))

		tx := store.begin()
		tx.failAppend = errWriteFailed
		_, err := reputation.ApplyDelta(t.Context(), tx, 1, -3, nil)
		tx.commit()

		require.ErrorIs(t, err, errWriteFailed)
		assert.NotErrorIs(t, err, reputation.ErrShopNotFound)
	})
}

func TestApplyPenalty(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addShop(5, ptr(60.0))

	tx := store.begin()
	got, err := reputation.ApplyPenalty(t.Context(), tx, 5, reputation.SeverityLevel3, &reputation.EventMeta{Source: "complaint"})
	tx.commit()
	require.NoError(t, err)

	assert.InDelta(t, 58.5, got.After, 1e-9)
	assert.Equal(t, "Bronze Shop", reputation.TitleForScore(got.After))

	events := store.eventsFor(5)
	require.Len(t, events, 1)
	assert.InDelta(t, -1.5, events[0].Delta, 1e-9)
}

func TestApplyDeltaConcurrentSameShop(t *testing.T) {
	t.Parallel()

	const initial = 50.0

	for range 50 {
		store := newMemStore()
		store.addShop(1, ptr(initial))

		g, ctx := errgroup.WithContext(t.Context())
		for _, delta := range []float64{-3, -4} {
			g.Go(func() error {
				tx := store.begin()
				defer tx.commit()

				_, err := reputation.ApplyDelta(ctx, tx, 1, delta, nil)
				if err != nil {
					return err
				}

				// Hold the row lock a little so the other writer has to wait.
				time.Sleep(time.Millisecond)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		row := store.shop(1)
		require.NotNil(t, row.score)
		assert.InDelta(t, reputation.ClampScore(initial-7), *row.score, 1e-9)

		events := store.eventsFor(1)
		require.Len(t, events, 2)

		report := reputation.VerifyChain(1, events, row.score)
		assert.True(t, report.OK(), "issues: %v", report.Issues)
	}
}

func TestApplyDeltaManyWriters(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addShop(2, nil)

	ctx := context.Background()
	g := new(errgroup.Group)
	for range 30 {
		g.Go(func() error {
			tx := store.begin()
			defer tx.commit()

			_, err := reputation.ApplyDelta(ctx, tx, 2, 1, nil)
			return err
		})
	}
	require.NoError(t, g.Wait())

	row := store.shop(2)
	require.NotNil(t, row.score)
	assert.InDelta(t, 70.0, *row.score, 1e-9)
	assert.Len(t, store.eventsFor(2), 30)
}
