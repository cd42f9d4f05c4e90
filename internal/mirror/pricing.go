package mirror

import (
	"mirrorlab/internal/domain"
)

const (
	priceFloor = 0.01
	priceCeil  = 0.99
)

// applySlippage moves the fill away from the copier's favor: a follower
// buys higher and sells lower than the wallet it copies. The result stays
// inside the tradable band.
func applySlippage(price float64, side domain.Side, frac float64) float64 {
	if side == domain.SideBuy {
		return clampPrice(price + frac)
	}
	return clampPrice(price - frac)
}

// quarticTakerFee models the taker fee on short-duration markets:
// fee = p * 0.25 * (p*(1-p))^2. Peaks near 1.56% of price at p=0.5 and
// vanishes at both extremes.
func quarticTakerFee(p float64) float64 {
	q := p * (1 - p)
	return p * 0.25 * q * q
}

// entryPrice computes the simulated fill: slippage first, then the fee when
// the market belongs to the fee-bearing category. Fees are paid on both
// sides, so they raise a buy entry and lower a sell entry.
func entryPrice(theirPrice float64, side domain.Side, slippageFrac float64, feeBearing bool) (entry, fee float64) {
	slipped := applySlippage(theirPrice, side, slippageFrac)
	if feeBearing {
		fee = quarticTakerFee(slipped)
	}
	if side == domain.SideBuy {
		entry = clampPrice(slipped + fee)
	} else {
		entry = clampPrice(slipped - fee)
	}
	return entry, fee
}

func clampPrice(p float64) float64 {
	if p < priceFloor {
		return priceFloor
	}
	if p > priceCeil {
		return priceCeil
	}
	return p
}
