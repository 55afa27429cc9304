package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Shop history, newest first, with a stable tiebreak for keyset pagination
			CREATE INDEX IF NOT EXISTS idx_reputation_events_shop_history
			ON reputation_events (shop_id, created_at DESC, id DESC);

			-- Lookups of events raised by a given order, complaint or staff action
			CREATE INDEX IF NOT EXISTS idx_reputation_events_ref
			ON reputation_events (ref_type, ref_id)
			WHERE ref_id IS NOT NULL;

			-- Leaderboard style reads of scored shops
			CREATE INDEX IF NOT EXISTS idx_shops_reputation_score
			ON shops (reputation_score DESC)
			WHERE reputation_score IS NOT NULL;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_reputation_events_shop_history;
			DROP INDEX IF EXISTS idx_reputation_events_ref;
			DROP INDEX IF EXISTS idx_shops_reputation_score;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
