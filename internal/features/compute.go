package features

import (
	"math"
	"sort"
)

// Every ratio in this file is guarded: a zero denominator yields zero, never
// NaN or a propagated error.

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func computeStddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeSharpeLike is mean pair pnl over its stddev. Not annualized; only
// ever compared against a threshold on the same scale.
func computeSharpeLike(pairPnLs []float64) float64 {
	mean := computeMean(pairPnLs)
	stddev := computeStddev(pairPnLs, mean)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}

// computeMaxDrawdownPct walks the cumulative pnl curve over chronologically
// ordered pair pnls and returns the largest peak-to-trough decline as a
// percentage of the peak.
func computeMaxDrawdownPct(pairPnLs []float64) float64 {
	var cumulative, peak, maxDD float64
	for _, pnl := range pairPnLs {
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// computeBurstiness returns the largest number of fills inside any sliding
// one-hour window, divided by the total fill count. Timestamps are seconds.
func computeBurstiness(timestamps []int64) float64 {
	n := len(timestamps)
	if n == 0 {
		return 0
	}

	sorted := make([]int64, n)
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	maxInWindow := 0
	left := 0
	for right := 0; right < n; right++ {
		for sorted[right]-sorted[left] > 3600 {
			left++
		}
		if count := right - left + 1; count > maxInWindow {
			maxInWindow = count
		}
	}
	return float64(maxInWindow) / float64(n)
}

// computeSizeCV is the coefficient of variation of fill notionals.
func computeSizeCV(notionals []float64) float64 {
	mean := computeMean(notionals)
	if mean == 0 {
		return 0
	}
	return computeStddev(notionals, mean) / mean
}

// computeConcentration returns the volume share of the top-3 markets.
func computeConcentration(volumeByMarket map[string]float64) float64 {
	if len(volumeByMarket) == 0 {
		return 0
	}

	volumes := make([]float64, 0, len(volumeByMarket))
	var total float64
	for _, v := range volumeByMarket {
		volumes = append(volumes, v)
		total += v
	}
	if total == 0 {
		return 0
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(volumes)))
	var top float64
	for i := 0; i < len(volumes) && i < 3; i++ {
		top += volumes[i]
	}
	return top / total
}

// computeDominant returns the label with the largest volume and its share.
func computeDominant(volumeByLabel map[string]float64) (string, float64) {
	var total, best float64
	var bestLabel string
	labels := make([]string, 0, len(volumeByLabel))
	for label := range volumeByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		v := volumeByLabel[label]
		total += v
		if v > best {
			best = v
			bestLabel = label
		}
	}
	if total == 0 {
		return "", 0
	}
	return bestLabel, best / total
}
