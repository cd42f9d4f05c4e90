package features

import (
	"math"
	"testing"
)

func TestComputeMaxDrawdownPct(t *testing.T) {
	tests := []struct {
		name  string
		pnls  []float64
		want  float64
	}{
		{"no trades", nil, 0},
		{"monotonic up", []float64{1, 2, 3}, 0},
		{"peak 10 trough 4", []float64{10, -6, 2}, 60},
		{"never above zero", []float64{-5, -5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeMaxDrawdownPct(tt.pnls)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("computeMaxDrawdownPct(%v) = %f, want %f", tt.pnls, got, tt.want)
			}
		})
	}
}

func TestComputeBurstiness(t *testing.T) {
	// Four fills inside one hour, one far away: 4/5.
	ts := []int64{0, 600, 1200, 3000, 100000}
	got := computeBurstiness(ts)
	if math.Abs(got-0.8) > 1e-9 {
		t.Errorf("burstiness = %f, want 0.8", got)
	}

	if computeBurstiness(nil) != 0 {
		t.Error("empty input must yield 0")
	}

	// A single fill is its own burst
	if got := computeBurstiness([]int64{42}); got != 1 {
		t.Errorf("single fill burstiness = %f, want 1", got)
	}
}

func TestComputeConcentration(t *testing.T) {
	volumes := map[string]float64{
		"m1": 50, "m2": 30, "m3": 10, "m4": 5, "m5": 5,
	}
	got := computeConcentration(volumes)
	if math.Abs(got-0.9) > 1e-9 {
		t.Errorf("concentration = %f, want 0.9", got)
	}

	// Fewer than three markets: everything is top-3
	if got := computeConcentration(map[string]float64{"m1": 7}); got != 1 {
		t.Errorf("single market concentration = %f, want 1", got)
	}
}

func TestZeroDenominatorGuards(t *testing.T) {
	if computeWinRate(0, 0) != 0 {
		t.Error("win rate with no pairs must be 0")
	}
	if computeSizeCV(nil) != 0 {
		t.Error("size cv with no fills must be 0")
	}
	if computeSharpeLike([]float64{5}) != 0 {
		t.Error("sharpe with one pair must be 0")
	}
	if computeConcentration(map[string]float64{"m1": 0}) != 0 {
		t.Error("concentration with zero volume must be 0")
	}
	if label, share := computeDominant(nil); label != "" || share != 0 {
		t.Error("dominant with no volume must be empty")
	}
}

func TestComputeDominant(t *testing.T) {
	label, share := computeDominant(map[string]float64{
		"crypto":   60,
		"politics": 30,
		"sports":   10,
	})
	if label != "crypto" {
		t.Errorf("dominant label = %s, want crypto", label)
	}
	if math.Abs(share-0.6) > 1e-9 {
		t.Errorf("dominant share = %f, want 0.6", share)
	}
}
