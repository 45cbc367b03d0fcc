// Package utils holds order-sizing helpers shared by strategies.
package utils

// CostFunc returns the fees charged for a fill of volume shares at price.
type CostFunc func(price float64, volume int64) float64

// MaxAffordableVolume returns the largest lot-aligned volume whose notional
// plus fees fits within cash. A nil cost function sizes on notional alone.
func MaxAffordableVolume(cash, price float64, lot int64, cost CostFunc) int64 {
	if cash <= 0 || price <= 0 || lot <= 0 {
		return 0
	}

	volume := RoundToLot(int64(cash/price), lot)
	for volume > 0 {
		total := price * float64(volume)
		if cost != nil {
			total += cost(price, volume)
		}
		if total <= cash {
			break
		}
		volume -= lot
	}

	return volume
}

// RoundToLot rounds volume down to a multiple of lot.
func RoundToLot(volume, lot int64) int64 {
	if lot <= 0 || volume <= 0 {
		return 0
	}
	return volume - volume%lot
}
