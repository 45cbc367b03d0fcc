// Package risk gates strategy invocation during replay.
package risk

import (
	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
)

// Gate decides per timestamp whether the strategy may run. A false return
// skips the strategy call for that timestamp only.
type Gate interface {
	CheckRisk(view *types.ReplayView) bool
}

// Unrestricted always allows the strategy to run.
type Unrestricted struct{}

func (Unrestricted) CheckRisk(*types.ReplayView) bool { return true }

// MaxPositionWeight blocks the strategy while any single position exceeds
// the given share of total assets. It is a circuit breaker against runaway
// concentration, not a rebalancer.
type MaxPositionWeight struct {
	Limit  float64
	Logger *logger.Logger
}

func (g MaxPositionWeight) CheckRisk(view *types.ReplayView) bool {
	if view.Assets.TotalAsset <= 0 {
		return true
	}
	for code, pos := range view.Positions {
		weight := pos.MarketValue / view.Assets.TotalAsset
		if weight > g.Limit {
			if g.Logger != nil {
				g.Logger.Warn("Risk gate closed: position weight over limit",
					zap.String("code", code),
					zap.Float64("weight", weight),
					zap.Float64("limit", g.Limit))
			}
			return false
		}
	}
	return true
}
