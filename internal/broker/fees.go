// Package broker holds the ledger collaborator: account state, positions,
// signal execution and fee arithmetic.
package broker

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/khquant-lab/khquant/internal/types"
)

// FeeSchedule computes per-trade cost components. All arithmetic runs on
// decimals so repeated small fees do not drift.
type FeeSchedule struct {
	CommissionRate decimal.Decimal
	MinCommission  decimal.Decimal
	StampTaxRate   decimal.Decimal
	TransferRate   decimal.Decimal
	FlowFeeAmount  decimal.Decimal
}

// DefaultFeeSchedule mirrors common A-share brokerage terms: 0.03%
// commission with a 5 yuan floor, 0.1% stamp tax on sells, 0.001% transfer
// fee on Shanghai instruments, no flow fee.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		CommissionRate: decimal.NewFromFloat(0.0003),
		MinCommission:  decimal.NewFromInt(5),
		StampTaxRate:   decimal.NewFromFloat(0.001),
		TransferRate:   decimal.NewFromFloat(0.00001),
		FlowFeeAmount:  decimal.Zero,
	}
}

func turnover(price float64, volume int64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(volume))
}

// Commission returns the brokerage commission, floored at MinCommission.
func (f FeeSchedule) Commission(price float64, volume int64) float64 {
	c := turnover(price, volume).Mul(f.CommissionRate)
	if c.LessThan(f.MinCommission) {
		c = f.MinCommission
	}
	v, _ := c.Float64()
	return v
}

// StampTax returns the stamp tax, charged on sells only.
func (f FeeSchedule) StampTax(price float64, volume int64, action types.TradeAction) float64 {
	if action != types.TradeActionSell {
		return 0
	}
	v, _ := turnover(price, volume).Mul(f.StampTaxRate).Float64()
	return v
}

// TransferFee returns the registration transfer fee, charged on Shanghai
// listed instruments only.
func (f FeeSchedule) TransferFee(code string, price float64, volume int64) float64 {
	if !strings.HasSuffix(code, ".SH") {
		return 0
	}
	v, _ := turnover(price, volume).Mul(f.TransferRate).Float64()
	return v
}

// FlowFee returns the fixed per-order fee.
func (f FeeSchedule) FlowFee() float64 {
	v, _ := f.FlowFeeAmount.Float64()
	return v
}

// TotalCost sums all components for one trade.
func (f FeeSchedule) TotalCost(code string, price float64, volume int64, action types.TradeAction) float64 {
	return f.Commission(price, volume) +
		f.StampTax(price, volume, action) +
		f.TransferFee(code, price, volume) +
		f.FlowFee()
}
