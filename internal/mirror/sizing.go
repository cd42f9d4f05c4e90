package mirror

import (
	"math"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
)

// proposeSize decides how many shares to copy. Proportional sizing scales
// the source size by the bankroll ratio so results stay representative of
// following the wallet for real. The flat fallback covers disabled
// proportional mode and source trades whose size cannot be trusted.
// The per-trade cap bounds the entry notional in quote currency.
func proposeSize(trade *domain.SourceTrade, theirBankroll float64, cfg config.TradingConfig) (size float64, method string) {
	if cfg.ProportionalSizing && finitePositive(trade.Size) && finitePositive(theirBankroll) {
		size = trade.Size * (cfg.BankrollUSD / theirBankroll)
		method = domain.SizingProportional
	} else {
		size = cfg.FlatSizeUSD / trade.Price
		method = domain.SizingFlat
	}

	if notional := size * trade.Price; notional > cfg.PerTradeCapUSD {
		size = cfg.PerTradeCapUSD / trade.Price
	}
	return size, method
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
