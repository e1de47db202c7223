package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeQuote is a single exchange's quote contributing to a resolved
// price. The set of quotes behind a price is its provenance.
type ExchangeQuote struct {
	Exchange  string           `json:"exchange"`
	Price     decimal.Decimal  `json:"price"`
	Change24h *decimal.Decimal `json:"change24h,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// InstrumentPrice is the current observation for one instrument.
// Price is always positive; non-positive ticks are dropped on ingest.
type InstrumentPrice struct {
	Pair      Pair             `json:"-"`
	Symbol    string           `json:"symbol"`
	Price     decimal.Decimal  `json:"price"`
	Change24h *decimal.Decimal `json:"change24h,omitempty"`
	Exchange  string           `json:"exchange,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// MultiExchangePrice is the derived cross-exchange view of one asset:
// every live quote against a supported quote currency, plus a simple
// average and the best available 24h change figure. It is computed on
// demand and never stored.
type MultiExchangePrice struct {
	Asset     string
	Quotes    []ExchangeQuote
	Average   decimal.Decimal
	Change24h *decimal.Decimal
}

// HasQuotes reports whether any exchange currently quotes the asset.
func (m MultiExchangePrice) HasQuotes() bool {
	return len(m.Quotes) > 0
}

// QuoteFrom returns the quote published by the given exchange, if any.
func (m MultiExchangePrice) QuoteFrom(exchange string) (ExchangeQuote, bool) {
	for _, q := range m.Quotes {
		if q.Exchange == exchange {
			return q, true
		}
	}
	return ExchangeQuote{}, false
}

// ConnectionStatus describes the liveness of a stream connection and,
// when the upstream reports it, of the individual exchange feeds behind
// it.
type ConnectionStatus struct {
	Connected bool            `json:"connected"`
	Exchanges map[string]bool `json:"exchanges,omitempty"`
}
