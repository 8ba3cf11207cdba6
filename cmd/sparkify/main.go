// Command sparkify builds the Sparkify analytics database and loads the song
// and event log datasets into it.
//
// Usage:
//
//	sparkify init [flags]   drop and recreate the database and its tables
//	sparkify load [flags]   load song files, then log files
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justestif/go-sparkify-etl/internal/config"
	"github.com/justestif/go-sparkify-etl/internal/db"
	"github.com/justestif/go-sparkify-etl/internal/etl"
	"github.com/justestif/go-sparkify-etl/internal/telemetry"
)

const serviceName = "sparkify-etl"

const usage = `usage: sparkify <command> [flags]

commands:
  init    drop and recreate the database and the star schema tables
  load    load song and log files into the star schema

run "sparkify <command> -h" for the flags of a command`

var errUsage = errors.New("unknown command")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init", "load":
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(stderr, usage)
		return nil
	default:
		fmt.Fprintln(stderr, usage)
		return fmt.Errorf("%w: %q", errUsage, cmd)
	}

	cfg, err := config.Load("sparkify "+cmd, rest)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if cmd == "init" {
		return runInit(ctx, cfg, logger)
	}
	return runLoad(ctx, cfg, logger, stdout)
}

func runInit(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	name, err := db.CreateDatabase(ctx, cfg.AdminDSN, cfg.TargetDSN)
	if err != nil {
		return err
	}
	logger.Info("database created", "database", name)

	database, err := db.New(ctx, cfg.TargetDSN)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", name, err)
	}
	defer database.Close()

	if err := database.Reset(ctx); err != nil {
		return err
	}
	logger.Info("tables created", "tables", db.Tables)
	return nil
}

func runLoad(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	policy, err := etl.ParsePolicy(cfg.UserDedup)
	if err != nil {
		return err
	}

	tel, shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		// flush even when ctx was cancelled by a signal
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if serr := shutdown(flushCtx); serr != nil {
			logger.Warn("telemetry shutdown failed", "error", serr)
		}
	}()

	database, err := db.New(ctx, cfg.TargetDSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	pipeline := etl.New(etl.NewPostgresStorage(database), cfg.SongDataDir, cfg.LogDataDir,
		etl.WithUserPolicy(policy),
		etl.WithLogger(logger),
		etl.WithTelemetry(tel),
	)

	res, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d song files and %d log files processed in %s\n",
		res.SongFiles, res.LogFiles, res.Elapsed.Round(time.Millisecond))
	return nil
}
