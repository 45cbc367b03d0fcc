package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/khquant-lab/khquant/pkg/errors"
)

type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// Signal is a single order intent emitted by a strategy callback. The engine
// stamps Timestamp and fills ActualPrice and TradeCost after execution.
type Signal struct {
	Code     string      `validate:"required"`
	Action   TradeAction `validate:"required,oneof=buy sell"`
	Volume   int64       `validate:"required,gt=0"`
	Price    optional.Option[float64]
	Reason   string
	Strategy string

	// Stamped by the engine when the signal is processed.
	Timestamp   Timestamp
	ActualPrice optional.Option[float64]
	TradeCost   optional.Option[float64]
}

var signalValidator = validator.New()

// Validate checks the declarative constraints on the signal.
func (s *Signal) Validate() error {
	if err := signalValidator.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}
	return nil
}

// FillPrice resolves the execution price: explicit limit when set, market
// price otherwise.
func (s *Signal) FillPrice(market optional.Option[float64]) optional.Option[float64] {
	if s.Price.IsSome() {
		return s.Price
	}
	return market
}
