// Package main provides a CLI tool for status store migrations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/thematic-screener-service/internal/config"
	"github.com/helixir/thematic-screener-service/internal/database"
	"github.com/helixir/thematic-screener-service/internal/observability"
)

// actionKind is the migration operation requested on the command line.
type actionKind int

const (
	actionUp actionKind = iota + 1
	actionDown
	actionSteps
	actionVersion
	actionForce
)

// action is a parsed command line.
type action struct {
	kind  actionKind
	steps int
	force int
	path  string
}

var (
	errNoAction       = errors.New("no action specified")
	errTooManyActions = errors.New("specify only one action at a time")
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs turns the command line into exactly one action.
func parseArgs(args []string, output io.Writer) (action, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(output)
	up := fs.Bool("up", false, "Run all pending migrations")
	down := fs.Bool("down", false, "Roll back all migrations")
	steps := fs.Int("steps", 0, "Run N migration steps (positive=up, negative=down)")
	version := fs.Bool("version", false, "Print the current migration version")
	force := fs.Int("force", -1, "Force set migration version (use to recover from failed migrations)")
	path := fs.String("path", "", "Override the migrations directory path")
	if err := fs.Parse(args); err != nil {
		return action{}, err
	}

	var selected []actionKind
	if *up {
		selected = append(selected, actionUp)
	}
	if *down {
		selected = append(selected, actionDown)
	}
	if *steps != 0 {
		selected = append(selected, actionSteps)
	}
	if *version {
		selected = append(selected, actionVersion)
	}
	if *force >= 0 {
		selected = append(selected, actionForce)
	}

	switch len(selected) {
	case 0:
		fs.Usage()
		fmt.Fprintln(output, "\nPlease specify one of: -up, -down, -steps N, -version, -force V")
		return action{}, errNoAction
	case 1:
		return action{kind: selected[0], steps: *steps, force: *force, path: *path}, nil
	default:
		return action{}, errTooManyActions
	}
}

func run(args []string) error {
	act, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}

	// Load configuration (database settings from env/config file).
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Console output for the CLI tool.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = observability.WithComponent(logger, "migrate")

	if cfg.Database.Driver != config.DriverPostgres {
		logger.Warn().Str("driver", cfg.Database.Driver).Msg("database driver is not postgres; migrating the configured PostgreSQL database anyway")
	}

	migrationDir := cfg.Database.MigrationPath
	if act.path != "" {
		migrationDir = act.path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := apply(migrator, act); err != nil {
		return err
	}
	printVersion(migrator, logger)
	return nil
}

// migrationRunner is the subset of database.Migrator driven by the CLI.
type migrationRunner interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
}

// apply executes act against m.
func apply(m migrationRunner, act action) error {
	switch act.kind {
	case actionUp:
		if err := m.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case actionDown:
		if err := m.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case actionSteps:
		if err := m.Steps(act.steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case actionForce:
		if err := m.Force(act.force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	case actionVersion:
	default:
		return errNoAction
	}
	return nil
}

// printVersion logs the current migration version.
func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}
