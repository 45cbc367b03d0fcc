package types

// AssetSnapshot is the account state at one point of the replay.
type AssetSnapshot struct {
	Cash        float64 `json:"cash"`
	FrozenCash  float64 `json:"frozen_cash"`
	MarketValue float64 `json:"market_value"`
	TotalAsset  float64 `json:"total_asset"`
}
