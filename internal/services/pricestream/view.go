package pricestream

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/internal/domain"
)

// View is an immutable copy of the live price map, taken so one whole
// recompute pass works against a single consistent state no matter how
// many ticks land meanwhile.
type View struct {
	prices map[string]domain.InstrumentPrice
	book   map[string]map[string]domain.ExchangeQuote
}

// View snapshots the current live map.
func (c *Client) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prices := make(map[string]domain.InstrumentPrice, len(c.prices))
	for k, v := range c.prices {
		prices[k] = v
	}
	book := make(map[string]map[string]domain.ExchangeQuote, len(c.book))
	for asset, byExchange := range c.book {
		cp := make(map[string]domain.ExchangeQuote, len(byExchange))
		for ex, q := range byExchange {
			cp[ex] = q
		}
		book[asset] = cp
	}
	return View{prices: prices, book: book}
}

// NewView builds a view from raw entries. Intended for tests and for
// consumers that need a Book without a live stream.
func NewView(entries []domain.InstrumentPrice, quotes map[string][]domain.ExchangeQuote) View {
	v := View{
		prices: make(map[string]domain.InstrumentPrice, len(entries)),
		book:   make(map[string]map[string]domain.ExchangeQuote, len(quotes)),
	}
	for _, e := range entries {
		v.prices[e.Symbol] = e
	}
	for asset, qs := range quotes {
		byExchange := make(map[string]domain.ExchangeQuote, len(qs))
		for _, q := range qs {
			byExchange[q.Exchange] = q
		}
		v.book[asset] = byExchange
	}
	return v
}

// Price looks an instrument up by symbol.
func (v View) Price(symbol string) (domain.InstrumentPrice, bool) {
	p, ok := v.prices[symbol]
	return p, ok
}

// QuotesFor returns the multi-exchange view for an asset, provenance
// ordered by the exchange hint first, then lexicographically.
func (v View) QuotesFor(asset string, hint []string) domain.MultiExchangePrice {
	return buildMultiExchange(asset, v.book[asset], hint)
}

// buildMultiExchange assembles the derived cross-exchange view: quotes
// in hint order then lexicographic, a simple average, and the first
// available 24h change along that order.
func buildMultiExchange(asset string, byExchange map[string]domain.ExchangeQuote, hint []string) domain.MultiExchangePrice {
	view := domain.MultiExchangePrice{Asset: asset}

	if len(byExchange) == 0 {
		return view
	}

	seen := make(map[string]struct{}, len(byExchange))
	for _, ex := range hint {
		if q, ok := byExchange[ex]; ok {
			view.Quotes = append(view.Quotes, q)
			seen[ex] = struct{}{}
		}
	}

	rest := make([]string, 0, len(byExchange))
	for ex := range byExchange {
		if _, ok := seen[ex]; !ok {
			rest = append(rest, ex)
		}
	}
	sort.Strings(rest)
	for _, ex := range rest {
		view.Quotes = append(view.Quotes, byExchange[ex])
	}

	sum := decimal.Zero
	for _, q := range view.Quotes {
		sum = sum.Add(q.Price)
	}
	view.Average = sum.Div(decimal.NewFromInt(int64(len(view.Quotes))))

	for _, q := range view.Quotes {
		if q.Change24h != nil {
			ch := *q.Change24h
			view.Change24h = &ch
			break
		}
	}

	return view
}
