package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/robalyx/shopledger/internal/setup"
	"github.com/urfave/cli/v3"
)

var (
	ErrNameRequired    = errors.New("NAME argument required")
	ErrShopIDRequired  = errors.New("SHOP_ID argument required")
	ErrInvalidShopID   = errors.New("invalid shop ID: must be a positive number")
	ErrInvalidCursor   = errors.New("invalid cursor: expected <timestamp>,<id>")
	ErrHistoryInvalid  = errors.New("reputation history failed verification")
	ErrNotInitialized  = errors.New("application is not initialized")
	ErrDeltaRequired   = errors.New("--delta is required")
	ErrUnknownSeverity = errors.New("unknown severity, expected LEVEL_1 to LEVEL_4")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
// App is filled in by the Before hook of each command group.
type CLIDependencies struct {
	App *setup.App
	Out io.Writer
}

// Setup returns a Before hook that bootstraps the application. The log
// directory and auto-migrate switch come from the root command's flags.
func (d *CLIDependencies) Setup(opts setup.Options) cli.BeforeFunc {
	return func(ctx context.Context, c *cli.Command) (context.Context, error) {
		opts.LogDir = c.String("log-dir")
		if !opts.SkipMigrationCheck {
			opts.AutoMigrate = c.Bool("auto-migrate")
		}

		app, err := setup.InitializeApp(ctx, opts)
		if err != nil {
			return ctx, err
		}

		d.App = app
		return ctx, nil
	}
}

// Cleanup is an After hook that shuts the application down.
func (d *CLIDependencies) Cleanup(_ context.Context, _ *cli.Command) error {
	if d.App != nil {
		d.App.Cleanup()
		d.App = nil
	}
	return nil
}

// app returns the initialized application.
func (d *CLIDependencies) app() (*setup.App, error) {
	if d.App == nil {
		return nil, ErrNotInitialized
	}
	return d.App, nil
}

// printJSON writes v as indented JSON.
func (d *CLIDependencies) printJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = fmt.Fprintln(d.Out, string(data))
	return err
}

// parseShopID parses a shop ID argument.
func parseShopID(arg string) (int64, error) {
	if arg == "" {
		return 0, ErrShopIDRequired
	}

	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidShopID, arg)
	}

	return id, nil
}

// parseShopIDs parses every positional argument as a shop ID.
func parseShopIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, ErrShopIDRequired
	}

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseShopID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}
