package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/YouuSer/certified/internal/cli"
	"github.com/YouuSer/certified/internal/config"
	"github.com/YouuSer/certified/internal/db"
	"github.com/YouuSer/certified/internal/logging"
	"github.com/YouuSer/certified/internal/refresh"
	"github.com/YouuSer/certified/internal/source"
)

func runRefresh(args []string) int {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall run timeout")
	jsonOut := fs.Bool("json", false, "Print the run result as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("refresh failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	client := source.NewClient(source.Options{
		AchahadaBaseURL: cfg.AchahadaBaseURL,
		AVSBaseURL:      cfg.AVSBaseURL,
		Timeout:         cfg.SourceTimeout,
	}, logger)

	service := refresh.NewService(pool, client, logger)
	result, err := service.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("refresh run failed")
		fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			return 1
		}
		fmt.Fprintln(os.Stdout, string(encoded))
		return 0
	}

	fmt.Fprintf(os.Stdout, "sync %s: total=%d added=%d removed=%d modified=%d duplicates=%d\n",
		result.Date, result.Stats.Total, result.Stats.Added, result.Stats.Removed,
		result.Stats.Modified, result.Stats.Duplicates)
	return 0
}
