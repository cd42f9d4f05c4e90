// Package main prints a per-wallet copy-trade report: current verdict, copy
// fidelity, slippage averages, and simulated pnl over a trailing window.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
	pgstore "mirrorlab/internal/storage/postgres"
)

// walletReport is one row of the report.
type walletReport struct {
	Wallet          string  `json:"wallet"`
	Kind            string  `json:"kind"`
	Persona         string  `json:"persona,omitempty"`
	Exclusion       string  `json:"exclusion,omitempty"`
	FollowMode      string  `json:"follow_mode,omitempty"`
	CopiedDecisions int64   `json:"copied_decisions"`
	TotalDecisions  int64   `json:"total_decisions"`
	FidelityPct     float64 `json:"fidelity_pct"`
	AvgGapCents     float64 `json:"avg_gap_cents"`
	OpenTrades      int     `json:"open_trades"`
	SettledTrades   int     `json:"settled_trades"`
	Wins            int     `json:"wins"`
	RealizedPnL     float64 `json:"realized_pnl"`
}

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	wallet := flag.String("wallet", "", "Report a single wallet (default: every followable wallet)")
	days := flag.Int("days", 30, "Trailing window in days for the trade summary")
	slippageWindow := flag.Int("slippage-window", 20, "Number of recent records in the slippage average")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Storage.PostgresDSN == "" {
		log.Fatal("storage: postgres_dsn must not be empty")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	classifications := pgstore.NewClassificationStore(pool)
	fidelity := pgstore.NewFidelityEventStore(pool)
	slippage := pgstore.NewSlippageRecordStore(pool)
	simTrades := pgstore.NewSimulatedTradeStore(pool)

	var wallets []*domain.Classification
	if *wallet != "" {
		c, err := classifications.Get(ctx, *wallet)
		if err != nil {
			log.Fatalf("get classification for %s: %v", *wallet, err)
		}
		wallets = []*domain.Classification{c}
	} else {
		wallets, err = classifications.ListFollowable(ctx)
		if err != nil {
			log.Fatalf("list followable wallets: %v", err)
		}
	}

	end := time.Now().Unix()
	start := end - int64(*days)*86400

	var reports []walletReport
	for _, c := range wallets {
		r, err := buildReport(ctx, c, fidelity, slippage, simTrades, start, end, *slippageWindow)
		if err != nil {
			log.Fatalf("report for %s: %v", c.Wallet, err)
		}
		reports = append(reports, r)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			log.Fatalf("encode report: %v", err)
		}
		return
	}

	printReports(reports, *days)
}

func buildReport(
	ctx context.Context,
	c *domain.Classification,
	fidelity storage.FidelityEventStore,
	slippage storage.SlippageRecordStore,
	simTrades storage.SimulatedTradeStore,
	start, end int64,
	slippageWindow int,
) (walletReport, error) {
	r := walletReport{
		Wallet:     c.Wallet,
		Kind:       string(c.Kind),
		Persona:    string(c.Persona),
		Exclusion:  string(c.Exclusion),
		FollowMode: string(c.FollowMode),
	}

	copied, total, err := fidelity.CountByWallet(ctx, c.Wallet)
	if err != nil {
		return r, fmt.Errorf("count decisions: %w", err)
	}
	r.CopiedDecisions = copied
	r.TotalDecisions = total
	if total == 0 {
		r.FidelityPct = 100
	} else {
		r.FidelityPct = float64(copied) / float64(total) * 100
	}

	r.AvgGapCents, err = slippage.RecentAvgGapCents(ctx, c.Wallet, slippageWindow)
	if err != nil {
		return r, fmt.Errorf("average slippage: %w", err)
	}

	trades, err := simTrades.GetByWalletTimeRange(ctx, c.Wallet, start, end)
	if err != nil {
		return r, fmt.Errorf("load simulated trades: %w", err)
	}
	for _, t := range trades {
		switch t.Status {
		case domain.TradeStatusOpen:
			r.OpenTrades++
		case domain.TradeStatusSettledWin:
			r.SettledTrades++
			r.Wins++
			r.RealizedPnL += t.PnL
		case domain.TradeStatusSettledLoss:
			r.SettledTrades++
			r.RealizedPnL += t.PnL
		}
	}
	return r, nil
}

func printReports(reports []walletReport, days int) {
	fmt.Printf("Copy-trade report, trailing %d days\n\n", days)
	if len(reports) == 0 {
		fmt.Println("No followable wallets.")
		return
	}

	fmt.Printf("%-44s %-22s %9s %10s %6s %8s %5s %12s\n",
		"WALLET", "VERDICT", "FIDELITY", "GAP(c)", "OPEN", "SETTLED", "WINS", "PNL($)")
	for _, r := range reports {
		verdict := r.Persona
		if r.Kind == string(domain.KindExclusion) {
			verdict = r.Exclusion
		} else if r.Kind == string(domain.KindUnclassified) {
			verdict = string(domain.KindUnclassified)
		}
		fmt.Printf("%-44s %-22s %8.1f%% %10.2f %6d %8d %5d %12.2f\n",
			r.Wallet, verdict, r.FidelityPct, r.AvgGapCents,
			r.OpenTrades, r.SettledTrades, r.Wins, r.RealizedPnL)
	}
}
