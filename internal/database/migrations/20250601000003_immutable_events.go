package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			CREATE OR REPLACE FUNCTION reject_reputation_event_change()
			RETURNS trigger AS $$
			BEGIN
				-- Deleting a shop cascades to its history
				IF TG_OP = 'DELETE' AND pg_trigger_depth() > 1 THEN
					RETURN OLD;
				END IF;

				RAISE EXCEPTION 'reputation_events is append-only (% rejected)', TG_OP
					USING ERRCODE = 'restrict_violation';
			END;
			$$ LANGUAGE plpgsql;

			DROP TRIGGER IF EXISTS trg_reputation_events_immutable ON reputation_events;

			CREATE TRIGGER trg_reputation_events_immutable
			BEFORE UPDATE OR DELETE ON reputation_events
			FOR EACH ROW EXECUTE FUNCTION reject_reputation_event_change();
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create immutability trigger: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP TRIGGER IF EXISTS trg_reputation_events_immutable ON reputation_events;
			DROP FUNCTION IF EXISTS reject_reputation_event_change();
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop immutability trigger: %w", err)
		}

		return nil
	})
}
