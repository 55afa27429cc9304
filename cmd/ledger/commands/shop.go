package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/urfave/cli/v3"
)

// ShopCommands returns all shop-related commands.
func ShopCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "create",
			Usage:     "Register a new shop",
			ArgsUsage: "NAME",
			Description: `Register a shop by name. Without --score the shop starts unscored
and reads as the default score until its first change.

  ledger shop create "Corner Books"
  ledger shop create "Corner Books" --score 72.5`,
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:    "score",
					Usage:   "Initial reputation score (clamped to 0-100)",
					Aliases: []string{"s"},
				},
			},
			Action: handleCreateShop(deps),
		},
		{
			Name:      "show",
			Usage:     "Show the reputation standing of one or more shops",
			ArgsUsage: "SHOP_ID [SHOP_ID...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Print JSON instead of text",
				},
			},
			Action: handleShowShops(deps),
		},
	}
}

// handleCreateShop handles the 'shop create' command.
func handleCreateShop(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() == 0 {
			return ErrNameRequired
		}

		app, err := deps.app()
		if err != nil {
			return err
		}

		var initialScore *float64
		if c.IsSet("score") {
			score := c.Float64("score")
			initialScore = &score
		}

		name := strings.Join(c.Args().Slice(), " ")

		shop, err := app.DB.Service().Shop().CreateShop(ctx, name, initialScore)
		if err != nil {
			return err
		}

		standing := shop.Standing()
		_, err = fmt.Fprintf(deps.Out, "Created shop %d %q (%s, %.1f)\n",
			shop.ID, shop.Name, standing.Title, standing.Score)
		return err
	}
}

// handleShowShops handles the 'shop show' command.
func handleShowShops(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		shopIDs, err := parseShopIDs(c.Args().Slice())
		if err != nil {
			return err
		}

		app, err := deps.app()
		if err != nil {
			return err
		}

		standings, err := app.DB.Service().Reputation().GetStandings(ctx, shopIDs)
		if err != nil {
			return err
		}

		if c.Bool("json") {
			ordered := make([]*reputation.Standing, 0, len(standings))
			for _, shopID := range shopIDs {
				if standing, ok := standings[shopID]; ok {
					ordered = append(ordered, standing)
				}
			}
			return deps.printJSON(ordered)
		}

		for _, shopID := range shopIDs {
			standing, ok := standings[shopID]
			if !ok {
				fmt.Fprintf(deps.Out, "%d\tnot found\n", shopID)
				continue
			}

			note := ""
			if standing.Defaulted {
				note = " (default)"
			}
			fmt.Fprintf(deps.Out, "%d\t%.1f%s\t%s\n", shopID, standing.Score, note, standing.Title)
		}

		return nil
	}
}
