package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle phase of the consolidation engine.
type Status string

const (
	// StatusIdle means Initialize has not run yet.
	StatusIdle Status = "idle"
	// StatusLoading means the initial fetch is in flight.
	StatusLoading Status = "loading"
	// StatusReady means an enriched view is available and live.
	StatusReady Status = "ready"
	// StatusError means the last fetch failed; any previously built
	// view stays visible.
	StatusError Status = "error"
)

// EnrichedAsset is an asset balance augmented with its resolved price.
// Derived from (snapshot x live prices), recomputed, never persisted.
type EnrichedAsset struct {
	AssetBalance
	// PriceUSD is the resolved price, zero when unresolved.
	PriceUSD decimal.Decimal `json:"priceUsd"`
	// HasPrice distinguishes a genuine zero value from "no data".
	HasPrice bool            `json:"hasPrice"`
	ValueUSD decimal.Decimal `json:"valueUsd"`
	// PricePair names the instrument the price came from, e.g.
	// "BTC/USDT".
	PricePair        string           `json:"pricePair,omitempty"`
	PricesByExchange []ExchangeQuote  `json:"pricesByExchange,omitempty"`
	IsAveragePrice   bool             `json:"isAveragePrice"`
	Change24h        *decimal.Decimal `json:"change24h,omitempty"`
}

// EnrichedExchange is an exchange balance with its total revalued from
// live prices and a weighted 24h change over its constituents.
type EnrichedExchange struct {
	ExchangeBalance
	Change24hPercent *decimal.Decimal `json:"change24hPercent,omitempty"`
	Change24hUSD     decimal.Decimal  `json:"change24hUsd"`
}

// PortfolioView is the enriched, consumer-facing valuation of the
// whole portfolio. It is owned by the aggregator; consumers only read
// copies of it.
type PortfolioView struct {
	Status    Status             `json:"status"`
	Assets    []EnrichedAsset    `json:"assets"`
	Exchanges []EnrichedExchange `json:"exchanges"`
	// TotalValueUSD is the sum of asset values at resolved prices.
	TotalValueUSD decimal.Decimal `json:"totalValueUsd"`
	// Change24hPercent is nil when no asset contributes a usable 24h
	// reference value.
	Change24hPercent *decimal.Decimal `json:"change24hPercent,omitempty"`
	Change24hUSD     decimal.Decimal  `json:"change24hUsd"`
	LastUpdated      time.Time        `json:"lastUpdated"`
	IsSyncing        bool             `json:"isSyncing,omitempty"`
}

// PortfolioRecord bundles a published view with its history index.
type PortfolioRecord struct {
	Index uint64
	View  PortfolioView
}
