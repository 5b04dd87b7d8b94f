package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// options - разобранные аргументы командной строки.
type options struct {
	command string
	steps   int
	dsn     string
	timeout time.Duration
}

var errUsage = errors.New("usage: migrate [-dsn DSN] [-steps N] [-timeout D] up|down|status")

func parseArgs(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts options
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply or roll back (0 = all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: BACKOFFICE_POSTGRES_DSN)")
	fs.DurationVar(&opts.timeout, "timeout", defaultTimeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	switch fs.NArg() {
	case 0:
		opts.command = "status"
	case 1:
		opts.command = strings.ToLower(fs.Arg(0))
	default:
		return options{}, errUsage
	}
	if opts.command != "up" && opts.command != "down" && opts.command != "status" {
		return options{}, fmt.Errorf("%w: unknown command %q", errUsage, opts.command)
	}
	if opts.steps < 0 {
		return options{}, fmt.Errorf("%w: steps must not be negative", errUsage)
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		opts.dsn = strings.TrimSpace(getenv("BACKOFFICE_POSTGRES_DSN"))
	}
	if opts.dsn == "" {
		return options{}, errors.New("BACKOFFICE_POSTGRES_DSN (or -dsn) is required")
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	store, err := postgres.Open(ctx, opts.dsn,
		postgres.WithMaxConns(2),
		postgres.WithLogger(log.WithField("component", "migrate")),
	)
	if err != nil {
		return err
	}
	defer store.Close()

	switch opts.command {
	case "up":
		err = store.MigrateUp(ctx, opts.steps)
	case "down":
		err = store.MigrateDown(ctx, opts.steps)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", opts.command, err)
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	printState(out, opts.command, state)
	return nil
}

func printState(out io.Writer, command string, state postgres.MigrationState) {
	pending := "none"
	if !state.UpToDate() {
		parts := make([]string, 0, len(state.Pending))
		for _, v := range state.Pending {
			parts = append(parts, fmt.Sprintf("%04d", v))
		}
		pending = strings.Join(parts, ",")
	}
	_, _ = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%s\n", command, state.Current, state.Applied, pending)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	_ = godotenv.Load()

	opts, err := parseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		log.WithError(err).Fatal("некорректные аргументы")
	}
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.WithError(err).Fatal("миграция завершилась с ошибкой")
	}
}
