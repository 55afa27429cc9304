package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			ALTER TABLE shops
			ADD CONSTRAINT chk_shops_reputation_score
			CHECK (reputation_score IS NULL OR reputation_score BETWEEN 0 AND 100);

			ALTER TABLE reputation_events
			ADD CONSTRAINT chk_reputation_events_scores
			CHECK (before_score BETWEEN 0 AND 100 AND after_score BETWEEN 0 AND 100);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add score constraints: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			ALTER TABLE reputation_events DROP CONSTRAINT IF EXISTS chk_reputation_events_scores;
			ALTER TABLE shops DROP CONSTRAINT IF EXISTS chk_shops_reputation_score;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop score constraints: %w", err)
		}

		return nil
	})
}
