package broker

import (
	"github.com/khquant-lab/khquant/internal/types"
)

// Ledger is the engine's account collaborator. Assets and Positions expose
// mutable state owned by the replay thread; ProcessSignals applies one batch
// of signals in order and returns the executed subset with actual price and
// trade cost stamped.
type Ledger interface {
	Assets() *types.AssetSnapshot
	Positions() map[string]*types.Position
	ProcessSignals(signals []*types.Signal) []*types.Signal
	ReleaseSettlement()
	Revalue(prices map[string]float64)
	T0Mode() bool

	Commission(price float64, volume int64) float64
	StampTax(price float64, volume int64, action types.TradeAction) float64
	TransferFee(code string, price float64, volume int64) float64
	FlowFee() float64
}
