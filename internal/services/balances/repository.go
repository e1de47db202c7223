// Package balances keeps the raw balance snapshot: fetched once at
// session start, then superseded by pushes whenever the backend
// finishes an out-of-band resync.
package balances

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/pricing"
	"github.com/vadiminshakov/folio/pkg/backoff"
)

type fetcher interface {
	FetchBalances(ctx context.Context) (domain.BalanceSnapshot, error)
}

type priceSubscriber interface {
	Connect(ctx context.Context)
	Subscribe(symbols []string)
}

type pushStream interface {
	Connect(ctx context.Context, userID string)
	Snapshots() <-chan domain.BalanceSnapshot
}

// Repository owns the raw snapshot state. The snapshot is replaced
// wholesale on fetch or push; a failed refetch keeps the previous one,
// stale data beats no data.
type Repository struct {
	api         fetcher
	prices      priceSubscriber
	stream      pushStream
	policy      *backoff.Policy
	logger      *zap.Logger
	quoteAssets []string

	mu       sync.RWMutex
	snapshot *domain.BalanceSnapshot
	fetchErr error
	syncing  bool
	onChange func()

	initOnce sync.Once
}

// NewRepository wires the repository to its collaborators. quoteAssets
// is the quote preference order used to derive subscription symbols;
// empty falls back to pricing.DefaultQuoteAssets.
func NewRepository(api fetcher, prices priceSubscriber, stream pushStream, policy *backoff.Policy, quoteAssets []string, logger *zap.Logger) *Repository {
	if policy == nil {
		policy = backoff.New(backoff.WithMaxAttempts(2))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(quoteAssets) == 0 {
		quoteAssets = pricing.DefaultQuoteAssets
	}
	return &Repository{
		api:         api,
		prices:      prices,
		stream:      stream,
		policy:      policy,
		logger:      logger,
		quoteAssets: quoteAssets,
	}
}

// OnChange registers the dirty trigger invoked after every snapshot or
// error-state change. Must be set before Initialize.
func (r *Repository) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Initialize connects both streams and performs the initial fetch. It
// runs exactly once per session; repeat calls are no-ops returning nil.
func (r *Repository) Initialize(ctx context.Context, userID string) error {
	var err error
	r.initOnce.Do(func() {
		r.prices.Connect(ctx)
		r.stream.Connect(ctx, userID)
		go r.consumePushes(ctx)
		err = r.LoadBalance(ctx)
	})
	return err
}

// LoadBalance issues a one-shot fetch of the balance snapshot. On
// success the raw snapshot is replaced and, when the response is
// cache-derived, the syncing flag is raised until a push corrects it.
// On failure the previous snapshot is retained and the error state set.
func (r *Repository) LoadBalance(ctx context.Context) error {
	snap, err := backoff.DoWithData(r.policy, ctx, r.api.FetchBalances)
	if err != nil {
		r.mu.Lock()
		r.fetchErr = err
		fn := r.onChange
		r.mu.Unlock()

		r.logger.Error("balance fetch failed, keeping previous snapshot", zap.Error(err))
		if fn != nil {
			fn()
		}
		return err
	}

	r.mu.Lock()
	r.snapshot = &snap
	r.syncing = snap.IsCached || snap.IsSyncing
	r.fetchErr = nil
	fn := r.onChange
	r.mu.Unlock()

	r.logger.Info("balance snapshot fetched",
		zap.Int("assets", len(snap.Assets)),
		zap.Bool("cached", snap.IsCached))

	r.prices.Subscribe(r.deriveSymbols(snap))
	if fn != nil {
		fn()
	}
	return nil
}

// Snapshot returns the current raw snapshot, if any.
func (r *Repository) Snapshot() (domain.BalanceSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot == nil {
		return domain.BalanceSnapshot{}, false
	}
	return *r.snapshot, true
}

// Err returns the error state left by the last failed fetch, cleared
// by any successful fetch or push.
func (r *Repository) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetchErr
}

// Syncing reports whether a backend resync is expected to supersede
// the current snapshot.
func (r *Repository) Syncing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.syncing
}

// consumePushes applies pushed snapshots. A push always supersedes the
// currently held snapshot regardless of how it was obtained; there is
// no reconciliation against in-flight fetches.
func (r *Repository) consumePushes(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-r.stream.Snapshots():
			if !ok {
				return
			}

			r.mu.Lock()
			r.snapshot = &snap
			r.syncing = false
			r.fetchErr = nil
			fn := r.onChange
			r.mu.Unlock()

			r.logger.Info("balance snapshot pushed", zap.Int("assets", len(snap.Assets)))
			if fn != nil {
				fn()
			}
		}
	}
}

// deriveSymbols maps the snapshot's assets onto the instrument symbols
// the price stream should push: asset against the primary quote, or
// the next preferred quote when the asset is the primary quote itself.
func (r *Repository) deriveSymbols(snap domain.BalanceSnapshot) []string {
	symbols := make([]string, 0, len(snap.Assets))
	seen := make(map[string]struct{}, len(snap.Assets))

	for _, a := range snap.Assets {
		for _, quote := range r.quoteAssets {
			if a.Asset == quote {
				continue
			}
			sym := domain.Pair{Base: a.Asset, Quote: quote}.String()
			if _, ok := seen[sym]; !ok {
				seen[sym] = struct{}{}
				symbols = append(symbols, sym)
			}
			break
		}
	}

	sort.Strings(symbols)
	return symbols
}
