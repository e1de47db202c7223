// Package aggregator combines the raw balance snapshot with the live
// price map into the enriched portfolio view: per-asset USD values,
// per-exchange totals, and the weighted 24h change. The view is
// recomputed on every relevant upstream change, throttled under burst
// traffic.
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/events"
	"github.com/vadiminshakov/folio/internal/services/pricestream"
	"github.com/vadiminshakov/folio/internal/services/pricing"
)

// DefaultRecomputeInterval bounds the recompute rate under
// high-frequency tick bursts.
const DefaultRecomputeInterval = 100 * time.Millisecond

type balanceSource interface {
	Initialize(ctx context.Context, userID string) error
	LoadBalance(ctx context.Context) error
	Snapshot() (domain.BalanceSnapshot, bool)
	Err() error
	Syncing() bool
	OnChange(fn func())
}

type priceSource interface {
	View() pricestream.View
	OnUpdate(fn func())
	Disconnect()
}

type disconnecter interface {
	Disconnect()
}

// Aggregator owns the enriched view. It only reads its upstreams and
// mutates nothing but its own derived state.
type Aggregator struct {
	repo     balanceSource
	prices   priceSource
	resolver *pricing.Resolver
	bus      *events.PortfolioBroadcaster
	logger   *zap.Logger
	thr      *throttle
	closers  []disconnecter

	mu          sync.RWMutex
	view        domain.PortfolioView
	initialized bool
}

// New wires the aggregator to its collaborators. closers are torn down
// on Close (typically the two stream clients). A zero interval falls
// back to DefaultRecomputeInterval.
func New(repo balanceSource, prices priceSource, resolver *pricing.Resolver, bus *events.PortfolioBroadcaster, interval time.Duration, logger *zap.Logger, closers ...disconnecter) *Aggregator {
	if interval <= 0 {
		interval = DefaultRecomputeInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = pricing.NewResolver(nil)
	}

	a := &Aggregator{
		repo:     repo,
		prices:   prices,
		resolver: resolver,
		bus:      bus,
		logger:   logger,
		closers:  closers,
		view:     domain.PortfolioView{Status: domain.StatusIdle},
	}
	a.thr = newThrottle(interval, a.recompute)

	repo.OnChange(a.thr.trigger)
	prices.OnUpdate(a.thr.trigger)

	return a
}

// Initialize connects both streams and triggers the initial fetch. The
// fetch error, if any, is returned, but the aggregator stays usable:
// the view carries the error status and any previous data.
func (a *Aggregator) Initialize(ctx context.Context, userID string) error {
	a.mu.Lock()
	a.initialized = true
	a.view = domain.PortfolioView{Status: domain.StatusLoading}
	a.mu.Unlock()

	if err := a.repo.Initialize(ctx, userID); err != nil {
		return errors.Wrap(err, "initial balance load")
	}
	return nil
}

// LoadBalance retriggers the one-shot fetch, e.g. behind a retry
// affordance after a failed initial load.
func (a *Aggregator) LoadBalance(ctx context.Context) error {
	return a.repo.LoadBalance(ctx)
}

// View returns the latest enriched view. Consumers must treat the
// contained slices as read-only.
func (a *Aggregator) View() domain.PortfolioView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// Close stops the recompute throttle and disconnects the streams.
// Idempotent.
func (a *Aggregator) Close() {
	a.thr.stop()
	for _, c := range a.closers {
		c.Disconnect()
	}
}

// recompute rebuilds the enriched view from whatever is currently
// known. It never aborts on partial data: unresolved prices degrade to
// zero values and a malformed snapshot yields an empty view.
func (a *Aggregator) recompute() {
	snap, ok := a.repo.Snapshot()

	view := domain.PortfolioView{Status: a.status(ok)}
	if ok {
		view = a.build(snap)
		view.Status = a.status(ok)
	}

	a.mu.Lock()
	a.view = view
	a.mu.Unlock()

	a.logger.Debug("recomputed portfolio view",
		zap.String("status", string(view.Status)),
		zap.Int("assets", len(view.Assets)),
		zap.String("total_usd", view.TotalValueUSD.String()))

	if a.bus != nil {
		a.bus.Publish(view)
	}
}

func (a *Aggregator) status(haveSnapshot bool) domain.Status {
	if a.repo.Err() != nil {
		return domain.StatusError
	}
	if haveSnapshot {
		return domain.StatusReady
	}

	a.mu.RLock()
	initialized := a.initialized
	a.mu.RUnlock()
	if initialized {
		return domain.StatusLoading
	}
	return domain.StatusIdle
}

// build executes one full enrichment pass against a consistent copy of
// the live price map.
func (a *Aggregator) build(snap domain.BalanceSnapshot) domain.PortfolioView {
	book := a.prices.View()

	assets := make([]domain.EnrichedAsset, 0, len(snap.Assets))
	for _, ab := range snap.Assets {
		ea := domain.EnrichedAsset{AssetBalance: ab}
		if res := a.resolver.Resolve(ab, book); res.Resolved {
			ea.PriceUSD = res.PriceUSD
			ea.HasPrice = true
			ea.ValueUSD = ab.Total.Mul(res.PriceUSD)
			ea.PricePair = res.Pair
			ea.PricesByExchange = res.Quotes
			ea.IsAveragePrice = res.IsAverage
			ea.Change24h = res.Change24h
		}
		assets = append(assets, ea)
	}

	// descending by value; stable keeps the snapshot order on ties
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].ValueUSD.GreaterThan(assets[j].ValueUSD)
	})

	total := decimal.Zero
	constituents := make([]constituent, 0, len(assets))
	for _, ea := range assets {
		total = total.Add(ea.ValueUSD)
		if ea.ValueUSD.IsPositive() {
			constituents = append(constituents, constituent{value: ea.ValueUSD, change: ea.Change24h})
		}
	}
	changePct, changeUSD := weighted24hChange(constituents)

	exchanges := make([]domain.EnrichedExchange, 0, len(snap.Exchanges))
	for _, exb := range snap.Exchanges {
		exchanges = append(exchanges, a.enrichExchange(exb, assets))
	}
	sort.SliceStable(exchanges, func(i, j int) bool {
		return exchanges[i].TotalValueUSD.GreaterThan(exchanges[j].TotalValueUSD)
	})

	lastUpdated := snap.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	return domain.PortfolioView{
		Assets:           assets,
		Exchanges:        exchanges,
		TotalValueUSD:    total,
		Change24hPercent: changePct,
		Change24hUSD:     changeUSD,
		LastUpdated:      lastUpdated,
		IsSyncing:        a.repo.Syncing(),
	}
}

// enrichExchange revalues one exchange from the per-exchange breakdown
// quantities at resolved prices. When no breakdown data produced a
// value at all, the snapshot-reported total is kept rather than
// showing a bogus zero.
func (a *Aggregator) enrichExchange(exb domain.ExchangeBalance, assets []domain.EnrichedAsset) domain.EnrichedExchange {
	recomputed := decimal.Zero
	var parts []constituent

	for _, ea := range assets {
		if !ea.HasPrice {
			continue
		}
		qty, ok := ea.ExchangeBreakdown[exb.Exchange]
		if !ok || !qty.IsPositive() {
			continue
		}
		v := qty.Mul(ea.PriceUSD)
		recomputed = recomputed.Add(v)
		parts = append(parts, constituent{value: v, change: ea.Change24h})
	}

	ee := domain.EnrichedExchange{ExchangeBalance: exb}
	if !recomputed.IsZero() {
		ee.TotalValueUSD = recomputed
	}
	ee.Change24hPercent, ee.Change24hUSD = weighted24hChange(parts)
	return ee
}

type constituent struct {
	value  decimal.Decimal
	change *decimal.Decimal
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// weighted24hChange reconstructs each constituent's value 24h ago as
// value / (1 + change/100); an unknown change counts as 0% (previous
// equals current). The aggregate change is the relative move of the
// summed values. A zero reconstructed total yields a nil percentage
// ("no data"), never a division artifact.
func weighted24hChange(parts []constituent) (*decimal.Decimal, decimal.Decimal) {
	current := decimal.Zero
	previous := decimal.Zero

	for _, p := range parts {
		current = current.Add(p.value)

		prev := p.value
		if p.change != nil {
			divisor := one.Add(p.change.Div(hundred))
			if divisor.IsPositive() {
				prev = p.value.Div(divisor)
			}
		}
		previous = previous.Add(prev)
	}

	changeUSD := current.Sub(previous)
	if previous.IsZero() {
		return nil, changeUSD
	}

	pct := current.Sub(previous).Div(previous).Mul(hundred)
	return &pct, changeUSD
}
