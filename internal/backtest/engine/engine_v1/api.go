package engine

import (
	"context"

	"github.com/khquant-lab/khquant/internal/calendar"
	"github.com/khquant-lab/khquant/internal/interaction"
	"github.com/khquant-lab/khquant/internal/marketdata"
	"github.com/khquant-lab/khquant/internal/risk"
	"github.com/khquant-lab/khquant/internal/runtime"
)

// RunOptions bundles everything one programmatic backtest needs. Strategy,
// Provider and either ConfigContent or ConfigPath are required; the rest
// default sensibly.
type RunOptions struct {
	ConfigContent string
	ConfigPath    string

	Strategy runtime.Strategy
	Provider marketdata.Provider

	Calendar      calendar.Calendar
	RiskGate      risk.Gate
	Boundary      interaction.RuntimeInteraction
	ResultsFolder string
}

// RunBacktest wires an engine from the options, runs it, and returns the
// parsed result of the run folder.
func RunBacktest(ctx context.Context, opts RunOptions) (*BacktestResult, error) {
	eng, err := NewBacktestEngineV1()
	if err != nil {
		return nil, err
	}
	v1 := eng.(*BacktestEngineV1)

	if opts.ConfigPath != "" {
		if err := v1.SetConfigPath(opts.ConfigPath); err != nil {
			return nil, err
		}
	} else {
		if err := v1.Initialize(opts.ConfigContent); err != nil {
			return nil, err
		}
	}

	if err := v1.LoadStrategy(opts.Strategy); err != nil {
		return nil, err
	}
	if err := v1.SetDataProvider(opts.Provider); err != nil {
		return nil, err
	}
	if opts.Calendar != nil {
		if err := v1.SetCalendar(opts.Calendar); err != nil {
			return nil, err
		}
	}
	if opts.RiskGate != nil {
		if err := v1.SetRiskGate(opts.RiskGate); err != nil {
			return nil, err
		}
	}
	if opts.Boundary != nil {
		if err := v1.SetInteraction(opts.Boundary); err != nil {
			return nil, err
		}
	}
	if opts.ResultsFolder != "" {
		if err := v1.SetResultsFolder(opts.ResultsFolder); err != nil {
			return nil, err
		}
	}

	if err := v1.Run(ctx); err != nil {
		return nil, err
	}

	if v1.LastRunFolder() == "" {
		// The run stopped cleanly before producing artifacts
		return nil, nil
	}

	return ParseBacktestDir(v1.LastRunFolder())
}
