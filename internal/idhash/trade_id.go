package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"mirrorlab/internal/domain"
)

// ComputeSourceTradeID computes a deterministic source trade identifier.
// Formula: SHA256(wallet|market_id|side|size|price|timestamp)
// Returns hex-encoded hash (64 characters).
func ComputeSourceTradeID(
	wallet string,
	marketID string,
	side domain.Side,
	size float64,
	price float64,
	timestamp int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%.8f|%.8f|%d",
		wallet,
		marketID,
		string(side),
		size,
		price,
		timestamp,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSimTradeID computes a deterministic simulated trade identifier.
// Formula: SHA256(source_trade_id|wallet|market_id)
// Returns hex-encoded hash (64 characters).
func ComputeSimTradeID(sourceTradeID, wallet, marketID string) string {
	data := fmt.Sprintf("%s|%s|%s", sourceTradeID, wallet, marketID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeFidelityEventID computes a deterministic fidelity event identifier.
// Formula: SHA256(source_trade_id|outcome)
// Returns hex-encoded hash (64 characters).
func ComputeFidelityEventID(sourceTradeID string, outcome domain.FidelityOutcome) string {
	data := fmt.Sprintf("%s|%s", sourceTradeID, string(outcome))

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSlippageRecordID computes a deterministic slippage record identifier.
// Formula: SHA256(sim_trade_id|slippage)
// Returns hex-encoded hash (64 characters).
func ComputeSlippageRecordID(simTradeID string) string {
	data := fmt.Sprintf("%s|slippage", simTradeID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
