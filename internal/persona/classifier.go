// Package persona classifies wallet feature vectors into followable
// personas or exclusions. Exclusion detectors always run first and their
// order is fixed: a wallet matching both an exclusion and a persona is
// excluded, and fixtures stay reproducible.
package persona

import (
	"math"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
)

// Verdict is the outcome of classifying one feature vector.
type Verdict struct {
	Kind      domain.ClassificationKind
	Persona   domain.Persona       // set when Kind is PERSONA
	Exclusion domain.ExclusionCode // set when Kind is EXCLUSION
	Metric    float64              // measured value of the deciding detector
	Threshold float64              // threshold it was compared against
}

// Classifier evaluates the detector lists against a feature vector.
type Classifier struct {
	cfg        config.PersonaConfig
	exclusions []exclusionDetector
	personas   []personaDetector
}

type exclusionDetector struct {
	code domain.ExclusionCode
	fire func(c *Classifier, f *domain.WalletFeatures, ageDays float64) (bool, float64, float64)
}

type personaDetector struct {
	persona domain.Persona
	fire    func(c *Classifier, f *domain.WalletFeatures) (bool, float64, float64)
}

// NewClassifier creates a classifier with the evaluation order baked in.
func NewClassifier(cfg config.PersonaConfig) *Classifier {
	c := &Classifier{cfg: cfg}
	c.exclusions = []exclusionDetector{
		{domain.ExclSniperInsider, (*Classifier).sniperInsider},
		{domain.ExclNoiseTrader, (*Classifier).noiseTrader},
		{domain.ExclTailRiskSeller, (*Classifier).tailRiskSeller},
		{domain.ExclNewsSniper, (*Classifier).newsSniper},
		{domain.ExclLiquidityProvider, (*Classifier).liquidityProvider},
		{domain.ExclJackpotGambler, (*Classifier).jackpotGambler},
		{domain.ExclBotSwarmMicro, (*Classifier).botSwarmMicro},
		{domain.ExclExecutionMaster, (*Classifier).executionMaster},
	}
	c.personas = []personaDetector{
		{domain.PersonaInformedSpecialist, (*Classifier).informedSpecialist},
		{domain.PersonaConsistentGeneralist, (*Classifier).consistentGeneralist},
		{domain.PersonaPatientAccumulator, (*Classifier).patientAccumulator},
	}
	return c
}

// Classify is a deterministic, total function over a feature vector. It
// walks the exclusion detectors top to bottom, then the persona detectors,
// and falls through to Unclassified.
func (c *Classifier) Classify(f *domain.WalletFeatures, walletAgeDays float64) Verdict {
	for _, d := range c.exclusions {
		if fired, metric, threshold := d.fire(c, f, walletAgeDays); fired {
			return Verdict{
				Kind:      domain.KindExclusion,
				Exclusion: d.code,
				Metric:    metric,
				Threshold: threshold,
			}
		}
	}

	for _, d := range c.personas {
		if fired, metric, threshold := d.fire(c, f); fired {
			return Verdict{
				Kind:      domain.KindPersona,
				Persona:   d.persona,
				Metric:    metric,
				Threshold: threshold,
			}
		}
	}

	return Verdict{Kind: domain.KindUnclassified}
}

func winRate(f *domain.WalletFeatures) float64 {
	total := f.WinCount + f.LossCount
	if total == 0 {
		return 0
	}
	return float64(f.WinCount) / float64(total)
}

// sniperInsider flags very young wallets with implausibly high win rates on
// few trades, the signature of trading on privileged information.
func (c *Classifier) sniperInsider(f *domain.WalletFeatures, ageDays float64) (bool, float64, float64) {
	t := c.cfg.Sniper
	wr := winRate(f)
	if ageDays < float64(t.MaxAgeDays) && wr > t.MinWinRate && f.TradeCount < t.MaxTrades {
		return true, wr, t.MinWinRate
	}
	return false, 0, 0
}

// noiseTrader flags high churn with nothing to show for it.
func (c *Classifier) noiseTrader(f *domain.WalletFeatures, _ float64) (bool, float64, float64) {
	t := c.cfg.Noise
	if f.TradesPerWeek > t.MinTradesPerWeek && math.Abs(f.RealizedROI) < t.MaxAbsROIPct {
		return true, f.TradesPerWeek, t.MinTradesPerWeek
	}
	return false, 0, 0
}

// tailRiskSeller flags wallets that win constantly in small increments and
// occasionally lose far more than an average win, the premium-collection
// profile that cannot be copied safely.
func (c *Classifier) tailRiskSeller(f *domain.WalletFeatures, _ float64) (bool, float64, float64) {
	t := c.cfg.TailRisk
	if f.AvgWinPnL <= 0 {
		return false, 0, 0
	}
	ratio := f.MaxPairLoss / f.AvgWinPnL
	if winRate(f) > t.MinWinRate && ratio > t.MaxLossToAvgWin {
		return true, ratio, t.MaxLossToAvgWin
	}
	return false, 0, 0
}

// newsSniper flags wallets whose activity collapses into short bursts.
func (c *Classifier) newsSniper(f *domain.WalletFeatures, _ float64) (bool, float64, float64) {
	t := c.cfg.NewsSniper
	if f.BurstinessRatio > t.MaxBurstiness {
		return true, f.BurstinessRatio, t.MaxBurstiness
	}
	return false, 0, 0
}

// liquidityProvider flags two-sided mid-price filling, market-making flow
// whose edge does not survive copying.
func (c *Classifier) liquidityProvider(f *domain.WalletFeatures, _ float64) (bool, float64, float64) {
	t := c.cfg.Liquidity
	balance := math.Abs(f.BuySellBalance - 0.5)
	if balance <= t.BalanceBand && f.MidFillRatio >= t.MinMidFillRatio {
		return true, f.MidFillRatio, t.MinMidFillRatio
	}
	return false, 0, 0
}

// jackpotGambler flags pnl dominated by a single outsized winner.
func (c *Classifier) jackpotGambler(f *domain.WalletFeatures, _ float64) (bool, float64, float64) {
	t := c.cfg.Jackpot
	if f.TopTradePnLShare > t.MaxTopTradeShare {
		return true, f.TopTradePnLShare, t.MaxTopTradeShare
	}
	return false, 0, 0
}

// botSwarmMicro flags extreme frequency at dust-sized fills.
func (c *Classifier) botSwarmMicro(f *domain.WalletFeatures, _ float64) (bool, float64, float64) {
	t := c.cfg.BotSwarm
	if f.TradesPerDay > t.MinTradesPerDay && f.AvgPositionSize < t.MaxAvgSizeUSD {
		return true, f.TradesPerDay, t.MinTradesPerDay
	}
	return false, 0, 0
}

// executionMaster is reserved. Detecting consistently-better-than-mid
// execution needs a mid-price decomposition of each fill that the trade
// feed alone cannot supply, so this never fires rather than guessing.
func (c *Classifier) executionMaster(_ *domain.WalletFeatures, _ float64) (bool, float64, float64) {
	return false, 0, 0
}

// informedSpecialist: narrow market focus with a strong win rate.
func (c *Classifier) informedSpecialist(f *domain.WalletFeatures) (bool, float64, float64) {
	t := c.cfg.Specialist
	wr := winRate(f)
	if f.UniqueMarkets <= t.MaxUniqueMarkets && wr >= t.MinWinRate {
		return true, wr, t.MinWinRate
	}
	return false, 0, 0
}

// consistentGeneralist: broad activity, believable win rate, controlled
// drawdown, decent risk-adjusted returns.
func (c *Classifier) consistentGeneralist(f *domain.WalletFeatures) (bool, float64, float64) {
	t := c.cfg.Generalist
	wr := winRate(f)
	if f.UniqueMarkets >= t.MinUniqueMarkets &&
		wr >= t.WinRateLow && wr <= t.WinRateHigh &&
		f.MaxDrawdownPct <= t.MaxDrawdownPct &&
		f.SharpeLike >= t.MinSharpe {
		return true, wr, t.WinRateLow
	}
	return false, 0, 0
}

// patientAccumulator: long holds at low frequency. An ROI floor stands in
// for a top-percentile position size check that cannot be computed online.
func (c *Classifier) patientAccumulator(f *domain.WalletFeatures) (bool, float64, float64) {
	t := c.cfg.Accumulator
	if f.AvgHoldHours >= t.MinAvgHoldHours &&
		f.TradesPerWeek <= t.MaxTradesPerWeek &&
		f.RealizedROI >= t.MinROIPct {
		return true, f.AvgHoldHours, t.MinAvgHoldHours
	}
	return false, 0, 0
}
