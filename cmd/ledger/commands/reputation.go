package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robalyx/shopledger/internal/database/types"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/robalyx/shopledger/pkg/utils"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// metaFlags are the provenance flags shared by apply and penalize.
func metaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "What caused the change (e.g. complaint, review, manual)",
		},
		&cli.StringFlag{
			Name:  "ref-type",
			Usage: "Type of the referenced record (e.g. ORDER)",
		},
		&cli.StringFlag{
			Name:  "ref-id",
			Usage: "ID of the referenced record, ignored if not numeric",
		},
		&cli.StringFlag{
			Name:  "note",
			Usage: "Free-form note stored with the event",
		},
		&cli.StringFlag{
			Name:  "actor",
			Usage: "ID of the staff member or system actor, ignored if not numeric",
		},
		&cli.BoolFlag{
			Name:  "force-log",
			Usage: "Record an event even if the score does not move",
		},
	}
}

// ReputationCommands returns all reputation-related commands.
func ReputationCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "apply",
			Usage:     "Apply a score delta to a shop",
			ArgsUsage: "SHOP_ID",
			Description: `Move a shop's score by --delta. The result is rounded to one decimal
and clamped to 0-100. An event is recorded when the score moves or --force-log is set.

  ledger reputation apply 12 --delta -5 --source complaint --ref-type ORDER --ref-id 991`,
			Flags: append([]cli.Flag{
				&cli.Float64Flag{
					Name:    "delta",
					Usage:   "Signed change to apply",
					Aliases: []string{"d"},
				},
			}, metaFlags()...),
			Action: handleApply(deps),
		},
		{
			Name:      "penalize",
			Usage:     "Apply the penalty for a severity level",
			ArgsUsage: "SHOP_ID",
			Description: `Lower a shop's score by the penalty for a severity level:
  LEVEL_1 = 0.5, LEVEL_2 = 1.0, LEVEL_3 = 1.5, LEVEL_4 = 2.0

  ledger reputation penalize 12 --severity LEVEL_3 --source complaint`,
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    "severity",
					Usage:   "Severity level (LEVEL_1 to LEVEL_4, or 1 to 4)",
					Value:   string(reputation.SeverityLevel1),
					Aliases: []string{"s"},
				},
			}, metaFlags()...),
			Action: handlePenalize(deps),
		},
		{
			Name:      "history",
			Usage:     "List a shop's reputation events, newest first",
			ArgsUsage: "SHOP_ID",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Usage:   "Events per page (default from config)",
					Aliases: []string{"l"},
				},
				&cli.StringFlag{
					Name:  "cursor",
					Usage: "Continue after the cursor printed by a previous page",
				},
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Print JSON instead of text",
				},
			},
			Action: handleHistory(deps),
		},
		{
			Name:      "verify",
			Usage:     "Check shop histories against their persisted scores",
			ArgsUsage: "SHOP_ID [SHOP_ID...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Print JSON instead of text",
				},
			},
			Action: handleVerify(deps),
		},
	}
}

// eventMetaFromFlags builds event metadata from the shared flags.
func eventMetaFromFlags(c *cli.Command) *reputation.EventMeta {
	return &reputation.EventMeta{
		Source:   strings.TrimSpace(c.String("source")),
		RefType:  strings.TrimSpace(c.String("ref-type")),
		RefID:    reputation.ParseOptionalID(c.String("ref-id")),
		Note:     utils.CompressWhitespacePreserveNewlines(c.String("note")),
		ActorID:  reputation.ParseOptionalID(c.String("actor")),
		ForceLog: c.Bool("force-log"),
	}
}

// handleApply handles the 'reputation apply' command.
func handleApply(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		shopID, err := parseShopID(c.Args().First())
		if err != nil {
			return err
		}

		if !c.IsSet("delta") {
			return ErrDeltaRequired
		}

		app, err := deps.app()
		if err != nil {
			return err
		}

		transition, err := app.DB.Service().Reputation().ApplyDelta(ctx, shopID, c.Float64("delta"), eventMetaFromFlags(c))
		if err != nil {
			return err
		}

		return printTransition(deps, shopID, transition)
	}
}

// handlePenalize handles the 'reputation penalize' command.
func handlePenalize(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		shopID, err := parseShopID(c.Args().First())
		if err != nil {
			return err
		}

		severity := reputation.ParseSeverity(c.String("severity"))
		if !severity.IsKnown() {
			return fmt.Errorf("%w: %q", ErrUnknownSeverity, c.String("severity"))
		}

		app, err := deps.app()
		if err != nil {
			return err
		}

		transition, err := app.DB.Service().Reputation().PenalizeShop(ctx, shopID, severity, eventMetaFromFlags(c))
		if err != nil {
			return err
		}

		return printTransition(deps, shopID, transition)
	}
}

func printTransition(deps *CLIDependencies, shopID int64, transition *reputation.Transition) error {
	logged := "no event"
	if transition.Logged {
		logged = "event recorded"
	}

	_, err := fmt.Fprintf(deps.Out, "Shop %d: %.1f -> %.1f (%s, %s)\n",
		shopID, transition.Before, transition.After, reputation.TitleForScore(transition.After), logged)
	return err
}

// handleHistory handles the 'reputation history' command.
func handleHistory(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		shopID, err := parseShopID(c.Args().First())
		if err != nil {
			return err
		}

		cursor, err := parseCursor(c.String("cursor"))
		if err != nil {
			return err
		}

		app, err := deps.app()
		if err != nil {
			return err
		}

		page, err := app.DB.Service().Reputation().GetEvents(ctx, shopID, cursor, c.Int("limit"))
		if err != nil {
			return err
		}

		if c.Bool("json") {
			return deps.printJSON(page)
		}

		for _, event := range page.Events {
			fmt.Fprintf(deps.Out, "%d\t%s\t%+g\t%.1f -> %.1f\t%s\n",
				event.ID, event.CreatedAt.Format(time.RFC3339), event.Delta, event.Before, event.After,
				describeEvent(&event))
		}

		if page.NextCursor != nil {
			fmt.Fprintf(deps.Out, "next: --cursor %s\n", formatCursor(page.NextCursor))
		}

		return nil
	}
}

// describeEvent renders the provenance of an event in one line.
func describeEvent(event *reputation.Event) string {
	parts := make([]string, 0, 4)
	if event.Source != "" {
		parts = append(parts, event.Source)
	}
	if event.RefType != "" || event.RefID != nil {
		ref := event.RefType
		if event.RefID != nil {
			ref += "#" + strconv.FormatInt(*event.RefID, 10)
		}
		parts = append(parts, ref)
	}
	if event.ActorID != nil {
		parts = append(parts, "by "+strconv.FormatInt(*event.ActorID, 10))
	}
	if event.Note != "" {
		parts = append(parts, strconv.Quote(event.Note))
	}
	return strings.Join(parts, " ")
}

// handleVerify handles the 'reputation verify' command.
func handleVerify(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		shopIDs, err := parseShopIDs(c.Args().Slice())
		if err != nil {
			return err
		}

		app, err := deps.app()
		if err != nil {
			return err
		}

		reports := make([]*reputation.AuditReport, 0, len(shopIDs))
		failed := 0
		for _, shopID := range shopIDs {
			report, err := app.DB.Service().Reputation().VerifyHistory(ctx, shopID)
			if err != nil {
				return err
			}
			if !report.OK() {
				failed++
			}
			reports = append(reports, report)
		}

		if c.Bool("json") {
			if err := deps.printJSON(reports); err != nil {
				return err
			}
		} else {
			for _, report := range reports {
				if report.OK() {
					fmt.Fprintf(deps.Out, "%d\tok\t%d events\n", report.ShopID, report.Events)
					continue
				}
				for _, issue := range report.Issues {
					fmt.Fprintf(deps.Out, "%d\t%s\tevent %d\t%s\n",
						report.ShopID, issue.Kind, issue.EventID, issue.Detail)
				}
			}
		}

		if failed > 0 {
			app.Logger.Warn("Verification found inconsistent histories",
				zap.Int("shops", len(shopIDs)),
				zap.Int("failed", failed))
			return fmt.Errorf("%w: %d of %d shops", ErrHistoryInvalid, failed, len(shopIDs))
		}

		return nil
	}
}

// formatCursor renders a cursor for the --cursor flag.
func formatCursor(cursor *types.EventCursor) string {
	return cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "," + strconv.FormatInt(cursor.ID, 10)
}

// parseCursor parses a --cursor value. An empty value means the first page.
func parseCursor(value string) (*types.EventCursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil //nolint:nilnil // no cursor is a valid first page
	}

	timestamp, id, ok := strings.Cut(value, ",")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCursor, value)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	eventID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	return &types.EventCursor{CreatedAt: createdAt, ID: eventID}, nil
}
