package engine

import (
	"context"

	"github.com/khquant-lab/khquant/internal/calendar"
	"github.com/khquant-lab/khquant/internal/interaction"
	"github.com/khquant-lab/khquant/internal/marketdata"
	"github.com/khquant-lab/khquant/internal/risk"
	"github.com/khquant-lab/khquant/internal/runtime"
)

// Engine drives one backtest run end to end: configuration, collaborator
// wiring, replay and artifact output.
type Engine interface {
	// Initialize the engine with YAML configuration content.
	Initialize(config string) error
	// SetConfigPath loads the YAML configuration from a file.
	SetConfigPath(path string) error
	// LoadStrategy sets the strategy to replay.
	LoadStrategy(strategy runtime.Strategy) error
	// SetDataProvider sets the market-data collaborator.
	SetDataProvider(provider marketdata.Provider) error
	// SetCalendar sets the trading-day calendar collaborator.
	SetCalendar(cal calendar.Calendar) error
	// SetRiskGate sets the per-timestamp risk collaborator.
	SetRiskGate(gate risk.Gate) error
	// SetInteraction sets the outbound notification boundary.
	SetInteraction(boundary interaction.RuntimeInteraction) error
	// SetResultsFolder sets the output directory for run artifacts.
	SetResultsFolder(folder string) error
	// Run executes the backtest. The context cancels cooperatively at the
	// next timestamp boundary.
	Run(ctx context.Context) error
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
