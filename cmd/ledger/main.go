package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robalyx/shopledger/cmd/ledger/commands"
	"github.com/robalyx/shopledger/internal/setup"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newApp(os.Stdout).Run(ctx, os.Args)
}

// newApp builds the command tree.
func newApp(out io.Writer) *cli.Command {
	deps := &commands.CLIDependencies{Out: out}

	return &cli.Command{
		Name:  "ledger",
		Usage: "Shop reputation ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "Directory for session log files",
				Value: "logs",
			},
			&cli.BoolFlag{
				Name:  "auto-migrate",
				Usage: "Apply pending migrations on startup instead of failing",
			},
		},
		Commands: []*cli.Command{
			{
				Name:     "db",
				Usage:    "Database management",
				Before:   deps.Setup(setup.Options{SkipMigrationCheck: true}),
				After:    deps.Cleanup,
				Commands: commands.MigrationCommands(deps),
			},
			{
				Name:     "shop",
				Usage:    "Shop management",
				Before:   deps.Setup(setup.Options{}),
				After:    deps.Cleanup,
				Commands: commands.ShopCommands(deps),
			},
			{
				Name:     "reputation",
				Usage:    "Reputation ledger operations",
				Aliases:  []string{"rep"},
				Before:   deps.Setup(setup.Options{}),
				After:    deps.Cleanup,
				Commands: commands.ReputationCommands(deps),
			},
		},
	}
}
