// Package pricing resolves a single authoritative USD price for an
// asset out of the live multi-exchange price map. The decision
// procedure is pure: no state, no I/O, fully determined by its inputs.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/internal/domain"
)

// DefaultQuoteAssets is the quote preference order when none is
// configured: USDT first, USD as fallback.
var DefaultQuoteAssets = []string{"USDT", "USD"}

// Book is the read-only view of live prices the resolver consults.
// *pricestream.Client satisfies it.
type Book interface {
	// Price looks an instrument up by symbol, e.g. "BTC/USDT".
	Price(symbol string) (domain.InstrumentPrice, bool)
	// QuotesFor returns the multi-exchange view for an asset with
	// provenance ordered by the given exchange hint.
	QuotesFor(asset string, hint []string) domain.MultiExchangePrice
}

// Resolution is the outcome of resolving one asset.
type Resolution struct {
	// Resolved is false when no price data exists for the asset at
	// all; the value is then treated as zero and rendered as "--".
	Resolved bool
	PriceUSD decimal.Decimal
	// Pair names the instrument the price came from.
	Pair string
	// Quotes is the provenance: every exchange quote that contributed
	// to the price.
	Quotes    []domain.ExchangeQuote
	IsAverage bool
	Change24h *decimal.Decimal
}

// Resolver holds the configured quote preference order.
type Resolver struct {
	quoteAssets []string
}

// NewResolver creates a resolver. An empty quote list falls back to
// DefaultQuoteAssets.
func NewResolver(quoteAssets []string) *Resolver {
	if len(quoteAssets) == 0 {
		quoteAssets = DefaultQuoteAssets
	}
	return &Resolver{quoteAssets: quoteAssets}
}

// QuoteAssets returns the preference order in use.
func (r *Resolver) QuoteAssets() []string {
	return r.quoteAssets
}

// Resolve picks the authoritative price for an asset.
//
// When the snapshot says the asset is held on exactly one exchange and
// that exchange currently quotes it, the quote is used directly: a
// thinly-traded venue's price must not be mixed into an asset that is
// demonstrably concentrated on one exchange. In every other case the
// arithmetic mean of all available quotes wins, flagged as an average
// whenever more than one quote contributed.
func (r *Resolver) Resolve(asset domain.AssetBalance, book Book) Resolution {
	view := book.QuotesFor(asset.Asset, asset.Exchanges)
	direct, hasDirect := r.directLookup(asset.Asset, book)

	if !view.HasQuotes() && !hasDirect {
		return Resolution{}
	}

	pair := asset.Asset + "/" + r.quoteAssets[0]
	if hasDirect {
		pair = direct.Symbol
	}

	if len(asset.Exchanges) == 1 {
		if q, ok := view.QuoteFrom(asset.Exchanges[0]); ok {
			return Resolution{
				Resolved:  true,
				PriceUSD:  q.Price,
				Pair:      pair,
				Quotes:    []domain.ExchangeQuote{q},
				IsAverage: false,
				Change24h: copyChange(q.Change24h),
			}
		}
	}

	if view.HasQuotes() {
		return Resolution{
			Resolved:  true,
			PriceUSD:  view.Average,
			Pair:      pair,
			Quotes:    view.Quotes,
			IsAverage: len(view.Quotes) > 1,
			Change24h: copyChange(view.Change24h),
		}
	}

	// no per-exchange quotes, only a plain instrument entry
	res := Resolution{
		Resolved:  true,
		PriceUSD:  direct.Price,
		Pair:      direct.Symbol,
		IsAverage: false,
		Change24h: copyChange(direct.Change24h),
	}
	if direct.Exchange != "" {
		res.Quotes = []domain.ExchangeQuote{{
			Exchange:  direct.Exchange,
			Price:     direct.Price,
			Change24h: copyChange(direct.Change24h),
			Timestamp: direct.Timestamp,
		}}
	}
	return res
}

// directLookup finds the first instrument entry for the asset against
// the supported quotes, in preference order.
func (r *Resolver) directLookup(asset string, book Book) (domain.InstrumentPrice, bool) {
	for _, quote := range r.quoteAssets {
		p := domain.Pair{Base: asset, Quote: quote}
		if entry, ok := book.Price(p.String()); ok {
			return entry, true
		}
	}
	return domain.InstrumentPrice{}, false
}

func copyChange(ch *decimal.Decimal) *decimal.Decimal {
	if ch == nil {
		return nil
	}
	v := *ch
	return &v
}
