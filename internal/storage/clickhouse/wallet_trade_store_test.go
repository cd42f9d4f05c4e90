package clickhouse

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

func TestWalletTradeStore_Insert(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletTradeStore(conn)
	ctx := context.Background()

	trade := &domain.SourceTrade{
		TradeID:   "trade-1",
		Wallet:    "wallet-a",
		MarketID:  "market-1",
		Side:      domain.SideBuy,
		Size:      100,
		Price:     0.55,
		Timestamp: 1000,
	}

	err := store.Insert(ctx, trade)
	require.NoError(t, err)

	got, err := store.GetByWallet(ctx, "wallet-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "trade-1", got[0].TradeID)
	assert.Equal(t, "market-1", got[0].MarketID)
	assert.Equal(t, domain.SideBuy, got[0].Side)
	assert.Equal(t, 100.0, got[0].Size)
	assert.Equal(t, 0.55, got[0].Price)
	assert.Equal(t, int64(1000), got[0].Timestamp)
}

func TestWalletTradeStore_Insert_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletTradeStore(conn)
	ctx := context.Background()

	trade := &domain.SourceTrade{
		TradeID: "trade-1", Wallet: "wallet-a", MarketID: "market-1",
		Side: domain.SideBuy, Size: 100, Price: 0.55, Timestamp: 1000,
	}

	err := store.Insert(ctx, trade)
	require.NoError(t, err)

	err = store.Insert(ctx, trade)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestWalletTradeStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletTradeStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	trades := []*domain.SourceTrade{
		{TradeID: "trade-1", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 100, Price: 0.50, Timestamp: 1000},
		{TradeID: "trade-2", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideSell, Size: 50, Price: 0.60, Timestamp: 2000},
		{TradeID: "trade-3", Wallet: "wallet-b", MarketID: "market-2", Side: domain.SideBuy, Size: 25, Price: 0.30, Timestamp: 1500},
	}

	err = store.InsertBulk(ctx, trades)
	require.NoError(t, err)

	got, err := store.GetByWallet(ctx, "wallet-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "trade-1", got[0].TradeID)
	assert.Equal(t, "trade-2", got[1].TradeID)
}

func TestWalletTradeStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletTradeStore(conn)
	ctx := context.Background()

	// Same trade id twice in one batch
	trades := []*domain.SourceTrade{
		{TradeID: "trade-1", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 100, Price: 0.50, Timestamp: 1000},
		{TradeID: "trade-1", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 200, Price: 0.51, Timestamp: 1001},
	}

	err := store.InsertBulk(ctx, trades)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestWalletTradeStore_GetByWalletTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletTradeStore(conn)
	ctx := context.Background()

	trades := []*domain.SourceTrade{
		{TradeID: "trade-1", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 10, Price: 0.50, Timestamp: 1000},
		{TradeID: "trade-2", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 20, Price: 0.51, Timestamp: 2000},
		{TradeID: "trade-3", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 30, Price: 0.52, Timestamp: 3000},
		{TradeID: "trade-4", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 40, Price: 0.53, Timestamp: 4000},
	}

	err := store.InsertBulk(ctx, trades)
	require.NoError(t, err)

	// Range [2000, 3000] inclusive
	got, err := store.GetByWalletTimeRange(ctx, "wallet-a", 2000, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].Timestamp)
	assert.Equal(t, int64(3000), got[1].Timestamp)

	// Exact boundary
	got, err = store.GetByWalletTimeRange(ctx, "wallet-a", 1000, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Empty range
	got, err = store.GetByWalletTimeRange(ctx, "wallet-a", 5000, 6000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWalletTradeStore_GetSince(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletTradeStore(conn)
	ctx := context.Background()

	trades := []*domain.SourceTrade{
		{TradeID: "trade-1", Wallet: "wallet-a", MarketID: "market-1", Side: domain.SideBuy, Size: 10, Price: 0.50, Timestamp: 1000},
		{TradeID: "trade-2", Wallet: "wallet-b", MarketID: "market-1", Side: domain.SideSell, Size: 20, Price: 0.51, Timestamp: 2000},
		{TradeID: "trade-3", Wallet: "wallet-a", MarketID: "market-2", Side: domain.SideBuy, Size: 30, Price: 0.52, Timestamp: 3000},
	}

	err := store.InsertBulk(ctx, trades)
	require.NoError(t, err)

	// Strictly greater than the cursor
	got, err := store.GetSince(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].Timestamp)
	assert.Equal(t, int64(3000), got[1].Timestamp)

	got, err = store.GetSince(ctx, 3000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWalletTradeStore_Wallets(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletTradeStore(conn)
	ctx := context.Background()

	var trades []*domain.SourceTrade
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			trades = append(trades, &domain.SourceTrade{
				TradeID:   fmt.Sprintf("trade-%d-%d", i, j),
				Wallet:    fmt.Sprintf("wallet-%d", i),
				MarketID:  "market-1",
				Side:      domain.SideBuy,
				Size:      10,
				Price:     0.50,
				Timestamp: int64(1000 + j),
			})
		}
	}

	err := store.InsertBulk(ctx, trades)
	require.NoError(t, err)

	wallets, err := store.Wallets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet-0", "wallet-1", "wallet-2"}, wallets)
}
