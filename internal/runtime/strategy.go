// Package runtime defines the strategy contract and built-in strategies.
package runtime

import (
	"github.com/khquant-lab/khquant/internal/types"
)

// InitContext carries the engine state a strategy may inspect at startup.
type InitContext struct {
	Time        types.Timestamp
	Assets      types.AssetSnapshot
	Positions   map[string]types.Position
	StockList   []string
	InitCapital float64
	Engine      types.EngineHandle
}

// Strategy is the per-bar callback collaborator. OnBar errors abort the
// whole run.
type Strategy interface {
	Name() string
	Init(stocks []string, ctx *InitContext) error
	OnBar(view *types.ReplayView) ([]*types.Signal, error)
}

// PreMarketHandler is implemented by strategies that want the pre-market
// hook. Hook errors are contained by the engine.
type PreMarketHandler interface {
	OnPreMarket(view *types.ReplayView) ([]*types.Signal, error)
}

// PostMarketHandler is implemented by strategies that want the post-market
// hook. Hook errors are contained by the engine.
type PostMarketHandler interface {
	OnPostMarket(view *types.ReplayView) ([]*types.Signal, error)
}
