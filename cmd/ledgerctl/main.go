// Command ledgerctl runs operational tasks against the ledger database:
// schema migrations, FX rate imports, event backfills, integrity scans and
// job triggers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/cmd/ledgerctl/cli"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/integrity"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/app"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/jobs"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  migrate up|down [N]|version
  fx import --source FILE [--mode dry|apply] [--json]
  events backfill --source FILE [--mode dry|apply] [--force] [--actor ID] [--json]
  integrity check [--grace 15m] [--json]
  jobs trigger idempotency:cleanup|ledger:integrity [--arg N]
  jobs stats
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 1 && args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return cli.ExitOK
	}
	if len(args) < 2 {
		fmt.Fprint(stderr, usage)
		return cli.ExitFailure
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return cli.ExitFailure
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)
	streams := cli.IO{Stdout: stdout, Stderr: stderr}

	switch args[0] {
	case "migrate":
		m, err := db.NewMigrator(cfg.PGDSN, logger)
		if err != nil {
			fmt.Fprintf(stderr, "migrate: %v\n", err)
			return cli.ExitFailure
		}
		defer m.Close()
		return cli.Migrate(m, args[1:], streams)
	case "fx":
		if args[1] != "import" {
			break
		}
		fs := flag.NewFlagSet("fx import", flag.ContinueOnError)
		fs.SetOutput(stderr)
		source := fs.String("source", "", "CSV file with currency,date,rate[,source] (- for stdin)")
		mode := fs.String("mode", string(cli.ModeDry), "dry or apply")
		asJSON := fs.Bool("json", false, "emit JSON summary")
		if err := fs.Parse(args[2:]); err != nil {
			return cli.ExitFailure
		}
		pipeline, closeFn, err := openPipeline(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(stderr, "fx import: %v\n", err)
			return cli.ExitFailure
		}
		defer closeFn()
		return cli.FXImport(ctx, pipeline.Rates, cli.FXImportOptions{
			IO: streams, Source: *source, Mode: cli.Mode(*mode), JSONOutput: *asJSON,
		})
	case "events":
		if args[1] != "backfill" {
			break
		}
		fs := flag.NewFlagSet("events backfill", flag.ContinueOnError)
		fs.SetOutput(stderr)
		source := fs.String("source", "", "JSONL file of raw events (- for stdin)")
		mode := fs.String("mode", string(cli.ModeDry), "dry or apply")
		force := fs.Bool("force", false, "supersede active events for the same source document")
		actor := fs.String("actor", "ledgerctl", "actor id stamped on created events")
		asJSON := fs.Bool("json", false, "emit JSON summary")
		if err := fs.Parse(args[2:]); err != nil {
			return cli.ExitFailure
		}
		pipeline, closeFn, err := openPipeline(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(stderr, "events backfill: %v\n", err)
			return cli.ExitFailure
		}
		defer closeFn()
		return cli.EventsBackfill(ctx, pipeline.Store, cli.BackfillOptions{
			IO: streams, Source: *source, Mode: cli.Mode(*mode), JSONOutput: *asJSON,
			Force: *force, Actor: *actor,
		})
	case "integrity":
		if args[1] != "check" {
			break
		}
		fs := flag.NewFlagSet("integrity check", flag.ContinueOnError)
		fs.SetOutput(stderr)
		grace := fs.Duration("grace", 0, "skip unprocessed events younger than this")
		asJSON := fs.Bool("json", false, "emit JSON report")
		if err := fs.Parse(args[2:]); err != nil {
			return cli.ExitFailure
		}
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			fmt.Fprintf(stderr, "integrity check: %v\n", err)
			return cli.ExitFailure
		}
		defer pool.Close()
		checker := integrity.NewChecker(integrity.NewRepository(pool), logger)
		return cli.IntegrityCheck(ctx, checker, cli.IntegrityOptions{IO: streams, Grace: *grace, JSONOutput: *asJSON})
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	}
	fmt.Fprint(stderr, usage)
	return cli.ExitFailure
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	jc := cli.NewJobsCLI(cfg.RedisAddr)
	defer jc.Close()
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "jobs trigger: job name required")
			return cli.ExitFailure
		}
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		arg := fs.Int("arg", 0, "retention hours for idempotency:cleanup, grace minutes for ledger:integrity (0 uses the job default)")
		if err := fs.Parse(args[2:]); err != nil {
			return cli.ExitFailure
		}
		info, err := jc.Trigger(ctx, args[1], *arg)
		if err != nil {
			fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return cli.ExitFailure
		}
		fmt.Fprintf(stdout, "enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
		return cli.ExitOK
	case "stats":
		stats, err := jc.InspectQueue()
		if err != nil {
			fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return cli.ExitFailure
		}
		_ = json.NewEncoder(stdout).Encode(stats)
		return cli.ExitOK
	}
	fmt.Fprintf(stderr, "jobs: unknown command %q (known: trigger %s|%s, stats)\n", args[0], jobs.TaskIdempotencyCleanup, jobs.TaskLedgerIntegrity)
	return cli.ExitFailure
}

// openPipeline connects to postgres and builds the posting core without
// redis or metrics.
func openPipeline(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Pipeline, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := app.BuildPipeline(cfg, logger, pool, nil, nil)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pipeline, pool.Close, nil
}
