package feed

import (
	"fmt"
	"strconv"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/idhash"
)

// Command is the JSON subscription envelope sent to the venue websocket.
type Command struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Assets  []string `json:"assets_ids,omitempty"`
}

// TradeMessage is a fill on the venue's activity channel. Numeric fields
// arrive as strings.
type TradeMessage struct {
	EventType string `json:"event_type"`
	Wallet    string `json:"proxy_wallet"`
	MarketID  string `json:"condition_id"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// ResolutionMessage announces a market settling at a terminal price.
type ResolutionMessage struct {
	EventType   string `json:"event_type"`
	MarketID    string `json:"condition_id"`
	SettlePrice string `json:"settle_price"`
	ResolvedAt  int64  `json:"resolved_at"`
}

// ToDomain converts a wire trade into a SourceTrade with its dedup id.
func (m *TradeMessage) ToDomain() (*domain.SourceTrade, error) {
	size, err := strconv.ParseFloat(m.Size, 64)
	if err != nil {
		return nil, fmt.Errorf("parse size %q: %w", m.Size, err)
	}
	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", m.Price, err)
	}
	side := domain.Side(m.Side)
	if !side.IsValid() {
		return nil, fmt.Errorf("invalid side %q", m.Side)
	}

	t := &domain.SourceTrade{
		Wallet:    m.Wallet,
		MarketID:  m.MarketID,
		Side:      side,
		Size:      size,
		Price:     price,
		Timestamp: m.Timestamp,
	}
	t.TradeID = idhash.ComputeSourceTradeID(t.Wallet, t.MarketID, t.Side, t.Size, t.Price, t.Timestamp)
	return t, nil
}

// ToDomain converts a wire resolution into a MarketResolution.
func (m *ResolutionMessage) ToDomain() (*domain.MarketResolution, error) {
	settle, err := strconv.ParseFloat(m.SettlePrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parse settle price %q: %w", m.SettlePrice, err)
	}
	return &domain.MarketResolution{
		MarketID:    m.MarketID,
		SettlePrice: settle,
		ResolvedAt:  m.ResolvedAt,
	}, nil
}
