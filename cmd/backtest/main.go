package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	engine "github.com/khquant-lab/khquant/internal/backtest/engine/engine_v1"
	"github.com/khquant-lab/khquant/internal/interaction"
	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/marketdata"
	"github.com/khquant-lab/khquant/internal/runtime"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/internal/version"
)

// backtestAction is the core logic executed by the CLI command. It resolves
// the strategy, wires the data provider and runs one backtest.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	strategyName := cmd.String("strategy")
	dataPath := cmd.String("data")
	resultsFolder := cmd.String("results")
	interactive := cmd.Bool("interactive")

	strategy, err := runtime.Resolve(strategyName)
	if err != nil {
		return fmt.Errorf("failed to resolve strategy (available: %s): %w",
			strings.Join(runtime.Names(), ", "), err)
	}

	zapLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	provider, err := newProvider(cmd, zapLogger)
	if err != nil {
		return err
	}
	defer provider.Close()

	opts := engine.RunOptions{
		ConfigPath:    configPath,
		Strategy:      strategy,
		Provider:      provider,
		ResultsFolder: resultsFolder,
	}
	if interactive {
		opts.Boundary = interaction.NewConsole()
	}

	log.Printf("Starting backtest with strategy %s and data from %s...", strategyName, dataPath)

	result, err := engine.RunBacktest(ctx, opts)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	if result == nil {
		log.Println("Backtest stopped before completion.")
		return nil
	}

	log.Printf("Backtest completed: %d trades, %d trading days, results in %s",
		len(result.Trades), result.Summary.TradeDays, result.Folder)

	return nil
}

// newProvider opens the DuckDB store and ingests any CSV files passed on
// the command line. CSV file names are expected as <code>_<period>.csv.
func newProvider(cmd *cli.Command, zapLogger *logger.Logger) (marketdata.Provider, error) {
	dataPath := cmd.String("data")

	provider, err := marketdata.NewDuckDBProvider(dataPath, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}

	for _, csvPath := range cmd.StringSlice("ingest") {
		code, period, err := parseIngestName(csvPath)
		if err != nil {
			provider.Close()
			return nil, err
		}
		if err := provider.IngestCSV(code, period, csvPath); err != nil {
			provider.Close()
			return nil, fmt.Errorf("failed to ingest %s: %w", csvPath, err)
		}
	}

	return provider, nil
}

func parseIngestName(path string) (string, types.Period, error) {
	base := strings.TrimSuffix(path[strings.LastIndex(path, "/")+1:], ".csv")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", fmt.Errorf("cannot derive code and period from %q, expected <code>_<period>.csv", path)
	}
	return base[:idx], types.Period(base[idx+1:]), nil
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Replay a trading strategy against historical market data",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML run configuration",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "strategy",
				Aliases:  []string{"s"},
				Usage:    "Name of a registered strategy",
				Value:    "buy_and_hold",
				Required: false,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the DuckDB market data store",
				Value:    "data/market.duckdb",
				Required: false,
			},
			&cli.StringSliceFlag{
				Name:     "ingest",
				Aliases:  []string{"i"},
				Usage:    "CSV files named <code>_<period>.csv to ingest before the run",
				Required: false,
			},
			&cli.StringFlag{
				Name:     "results",
				Aliases:  []string{"r"},
				Usage:    "Output directory for run artifacts",
				Required: false,
			},
			&cli.BoolFlag{
				Name:     "interactive",
				Usage:    "Render progress on the terminal and allow confirmations",
				Required: false,
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
