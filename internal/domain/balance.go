package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetBalance is the consolidated holding of one asset across every
// exchange the user connected. Total is always Free + Locked.
type AssetBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
	// Exchanges lists the exchanges holding this asset, in the order
	// the backend reports them.
	Exchanges []string `json:"exchanges,omitempty"`
	// ExchangeBreakdown is the per-exchange share of Total. When
	// present, the shares sum to Total.
	ExchangeBreakdown map[string]decimal.Decimal `json:"exchangeBreakdown,omitempty"`
}

// ExchangeBalance is one exchange account's holdings as the backend
// last synced them.
type ExchangeBalance struct {
	Exchange      string          `json:"exchange"`
	Label         string          `json:"label"`
	CredentialID  uuid.UUID       `json:"credentialId"`
	Assets        []AssetBalance  `json:"assets,omitempty"`
	TotalValueUSD decimal.Decimal `json:"totalValueUsd"`
}

// BalanceSnapshot is the authoritative state of holdings as last known
// from the backend. Snapshots are replaced wholesale on fetch or push,
// never partially mutated.
type BalanceSnapshot struct {
	Assets        []AssetBalance    `json:"byAsset"`
	Exchanges     []ExchangeBalance `json:"byExchange"`
	TotalValueUSD decimal.Decimal   `json:"totalValueUsd"`
	LastUpdated   time.Time         `json:"lastUpdated"`
	// IsCached marks a snapshot served from a stale cache while a
	// background resync runs.
	IsCached  bool `json:"isCached,omitempty"`
	IsSyncing bool `json:"isSyncing,omitempty"`
}
