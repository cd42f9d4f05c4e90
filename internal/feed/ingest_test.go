package feed

import (
	"context"
	"testing"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage/memory"
)

func tradeMessage() *TradeMessage {
	return &TradeMessage{
		EventType: "trade",
		Wallet:    "wallet-a",
		MarketID:  "market-1",
		Side:      "BUY",
		Size:      "80",
		Price:     "0.60",
		Timestamp: 1_700_000_000,
	}
}

func TestTradeMessageToDomain(t *testing.T) {
	trade, err := tradeMessage().ToDomain()
	if err != nil {
		t.Fatalf("ToDomain: %v", err)
	}
	if trade.Size != 80 || trade.Price != 0.60 {
		t.Errorf("size/price = %v/%v", trade.Size, trade.Price)
	}
	if trade.Side != domain.SideBuy {
		t.Errorf("side = %v", trade.Side)
	}
	if trade.TradeID == "" {
		t.Error("no trade id computed")
	}

	// Same fill parsed twice yields the same dedup key.
	again, _ := tradeMessage().ToDomain()
	if again.TradeID != trade.TradeID {
		t.Error("trade id not deterministic")
	}
}

func TestTradeMessageToDomainRejectsBadFields(t *testing.T) {
	m := tradeMessage()
	m.Side = "HOLD"
	if _, err := m.ToDomain(); err == nil {
		t.Error("invalid side accepted")
	}

	m = tradeMessage()
	m.Price = "not-a-number"
	if _, err := m.ToDomain(); err == nil {
		t.Error("unparseable price accepted")
	}
}

func TestIngestorArchivesAndTriggers(t *testing.T) {
	trades := memory.NewWalletTradeStore()
	triggers := 0
	client := NewClient("ws://unused", 0, nil)
	NewIngestor(client, IngestorOptions{
		Trades:  trades,
		Trigger: func() { triggers++ },
	})

	client.handleMessage([]byte(`{"event_type":"trade","proxy_wallet":"wallet-a","condition_id":"market-1","side":"BUY","size":"80","price":"0.60","timestamp":1700000000}`))

	got, err := trades.GetByWallet(context.Background(), "wallet-a")
	if err != nil {
		t.Fatalf("GetByWallet: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("archived trades = %d, want 1", len(got))
	}
	if triggers != 1 {
		t.Errorf("triggers = %d, want 1", triggers)
	}
}

func TestIngestorAbsorbsDuplicateFills(t *testing.T) {
	trades := memory.NewWalletTradeStore()
	triggers := 0
	client := NewClient("ws://unused", 0, nil)
	NewIngestor(client, IngestorOptions{
		Trades:  trades,
		Trigger: func() { triggers++ },
	})

	raw := []byte(`{"event_type":"trade","proxy_wallet":"wallet-a","condition_id":"market-1","side":"BUY","size":"80","price":"0.60","timestamp":1700000000}`)
	client.handleMessage(raw)
	client.handleMessage(raw)

	got, _ := trades.GetByWallet(context.Background(), "wallet-a")
	if len(got) != 1 {
		t.Errorf("archived trades = %d, want 1", len(got))
	}
	if triggers != 1 {
		t.Errorf("duplicate fill triggered the pipeline: triggers = %d", triggers)
	}
}

type recordingResolver struct {
	got []*domain.MarketResolution
}

func (r *recordingResolver) Settle(ctx context.Context, res *domain.MarketResolution) (int, error) {
	r.got = append(r.got, res)
	return 1, nil
}

func TestIngestorRoutesResolutions(t *testing.T) {
	client := NewClient("ws://unused", 0, nil)
	resolver := &recordingResolver{}
	NewIngestor(client, IngestorOptions{
		Trades:   memory.NewWalletTradeStore(),
		Resolver: resolver,
		Trigger:  func() {},
	})

	client.handleMessage([]byte(`{"event_type":"market_resolved","condition_id":"market-1","settle_price":"1.0","resolved_at":1700000100}`))

	if len(resolver.got) != 1 {
		t.Fatalf("resolutions = %d, want 1", len(resolver.got))
	}
	res := resolver.got[0]
	if res.MarketID != "market-1" || res.SettlePrice != 1.0 || res.ResolvedAt != 1700000100 {
		t.Errorf("resolution = %+v", res)
	}
}

func TestIngestorDropsMalformedMessages(t *testing.T) {
	trades := memory.NewWalletTradeStore()
	client := NewClient("ws://unused", 0, nil)
	NewIngestor(client, IngestorOptions{
		Trades:  trades,
		Trigger: func() {},
	})

	client.handleMessage([]byte(`{"event_type":"trade","proxy_wallet":"wallet-a","side":"BUY","size":"oops","price":"0.60"}`))
	client.handleMessage([]byte(`not json`))

	got, _ := trades.GetByWallet(context.Background(), "wallet-a")
	if len(got) != 0 {
		t.Errorf("malformed message archived: %d trades", len(got))
	}
}
