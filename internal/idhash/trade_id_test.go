package idhash

import (
	"testing"

	"mirrorlab/internal/domain"
)

func TestComputeSourceTradeID(t *testing.T) {
	tests := []struct {
		name      string
		wallet    string
		marketID  string
		side      domain.Side
		size      float64
		price     float64
		timestamp int64
	}{
		{
			name:      "buy fill",
			wallet:    "0xabc123",
			marketID:  "cond-456",
			side:      domain.SideBuy,
			size:      150.0,
			price:     0.42,
			timestamp: 1735000000,
		},
		{
			name:      "sell fill",
			wallet:    "0xdef789",
			marketID:  "cond-999",
			side:      domain.SideSell,
			size:      12.5,
			price:     0.91,
			timestamp: 1735000100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSourceTradeID(tt.wallet, tt.marketID, tt.side, tt.size, tt.price, tt.timestamp)

			if len(got) != 64 {
				t.Errorf("ComputeSourceTradeID() length = %d, want 64", len(got))
			}

			// Same inputs produce the same identifier
			got2 := ComputeSourceTradeID(tt.wallet, tt.marketID, tt.side, tt.size, tt.price, tt.timestamp)
			if got != got2 {
				t.Errorf("ComputeSourceTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeSourceTradeID_FieldSensitivity(t *testing.T) {
	base := ComputeSourceTradeID("0xabc", "cond-1", domain.SideBuy, 100.0, 0.50, 1735000000)

	variants := []string{
		ComputeSourceTradeID("0xabd", "cond-1", domain.SideBuy, 100.0, 0.50, 1735000000),
		ComputeSourceTradeID("0xabc", "cond-2", domain.SideBuy, 100.0, 0.50, 1735000000),
		ComputeSourceTradeID("0xabc", "cond-1", domain.SideSell, 100.0, 0.50, 1735000000),
		ComputeSourceTradeID("0xabc", "cond-1", domain.SideBuy, 100.1, 0.50, 1735000000),
		ComputeSourceTradeID("0xabc", "cond-1", domain.SideBuy, 100.0, 0.51, 1735000000),
		ComputeSourceTradeID("0xabc", "cond-1", domain.SideBuy, 100.0, 0.50, 1735000001),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base hash", i)
		}
	}
}

func TestComputeSimTradeID(t *testing.T) {
	got := ComputeSimTradeID("srcid-1", "0xabc", "cond-1")
	if len(got) != 64 {
		t.Errorf("ComputeSimTradeID() length = %d, want 64", len(got))
	}

	if got == ComputeSimTradeID("srcid-2", "0xabc", "cond-1") {
		t.Error("different source trades must map to different sim trade ids")
	}
}
