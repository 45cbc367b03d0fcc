package types

// Position is one instrument's holding in the ledger. CanUseVolume tracks
// the portion that is sellable today; under T+1 settlement shares bought
// today join it only at the next day boundary.
type Position struct {
	Code         string  `json:"code"`
	Volume       int64   `json:"volume"`
	CanUseVolume int64   `json:"can_use_volume"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	Profit       float64 `json:"profit"`
	ProfitRatio  float64 `json:"profit_ratio"`
}

// Revalue updates the mark-to-market fields against price.
func (p *Position) Revalue(price float64) {
	p.CurrentPrice = price
	p.MarketValue = price * float64(p.Volume)
	p.Profit = (price - p.AvgPrice) * float64(p.Volume)
	if p.AvgPrice != 0 {
		p.ProfitRatio = (price - p.AvgPrice) / p.AvgPrice
	} else {
		p.ProfitRatio = 0
	}
}
