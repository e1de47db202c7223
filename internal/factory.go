// Package internal wires the consolidation engine together: stream
// clients, repository, aggregator, history store, and the web
// dashboard, all built from one Config.
package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/events"
	"github.com/vadiminshakov/folio/internal/services/aggregator"
	"github.com/vadiminshakov/folio/internal/services/balances"
	"github.com/vadiminshakov/folio/internal/services/balancestream"
	"github.com/vadiminshakov/folio/internal/services/pricestream"
	"github.com/vadiminshakov/folio/internal/services/pricing"
	"github.com/vadiminshakov/folio/internal/storage/valuations"
	"github.com/vadiminshakov/folio/internal/transport"
	"github.com/vadiminshakov/folio/internal/web"
	"github.com/vadiminshakov/folio/pkg/backoff"
)

// Dashboard bundles the services running one portfolio session.
type Dashboard struct {
	conf       config.Config
	logger     *zap.Logger
	aggregator *aggregator.Aggregator
	bus        *events.PortfolioBroadcaster
	store      *valuations.WALStore
	web        *web.Server

	priceSock   *transport.Socket
	balanceSock *transport.Socket
}

// NewDashboard builds the full service graph from the configuration.
func NewDashboard(conf config.Config, logger *zap.Logger) (*Dashboard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reconnect := func() *backoff.Policy {
		return backoff.New(
			backoff.WithStep(conf.ReconnectStep),
			backoff.WithCap(conf.ReconnectCap),
			backoff.WithMaxAttempts(conf.ReconnectAttempts),
		)
	}

	priceSock := transport.NewSocket(conf.PriceStreamURL, conf.Token, reconnect(), logger.Named("pricestream"))
	balanceSock := transport.NewSocket(conf.BalanceStreamURL, conf.Token, reconnect(), logger.Named("balancestream"))

	prices := pricestream.New(priceSock, conf.QuoteAssets, logger.Named("pricestream"))
	stream := balancestream.New(balanceSock, logger.Named("balancestream"))

	api := balances.NewAPIClient(conf.GatewayURL, conf.Token)
	fetchPolicy := backoff.New(
		backoff.WithStep(conf.ReconnectStep),
		backoff.WithCap(conf.ReconnectCap),
		backoff.WithMaxAttempts(conf.FetchRetries),
	)
	repo := balances.NewRepository(api, prices, stream, fetchPolicy, conf.QuoteAssets, logger.Named("balances"))

	bus := events.NewPortfolioBroadcaster(256)
	agg := aggregator.New(
		repo,
		prices,
		pricing.NewResolver(conf.QuoteAssets),
		bus,
		conf.RecomputeInterval,
		logger.Named("aggregator"),
		prices,
		stream,
	)

	store, err := valuations.NewWALStore(conf.HistoryDir)
	if err != nil {
		return nil, errors.Wrap(err, "open valuation history")
	}

	return &Dashboard{
		conf:        conf,
		logger:      logger,
		aggregator:  agg,
		bus:         bus,
		store:       store,
		web:         web.NewServer(conf.WebAddr, store, agg),
		priceSock:   priceSock,
		balanceSock: balanceSock,
	}, nil
}

// Aggregator exposes the consolidation core, mainly for embedding.
func (d *Dashboard) Aggregator() *aggregator.Aggregator {
	return d.aggregator
}

// Run starts the session and blocks until ctx is cancelled or the web
// server fails. A failed initial fetch is not fatal: the dashboard
// stays up serving the error state and whatever data arrives later.
func (d *Dashboard) Run(ctx context.Context) error {
	defer d.shutdown()

	if err := d.aggregator.Initialize(ctx, d.conf.UserID); err != nil {
		d.logger.Error("initial balance load failed, dashboard starts degraded", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if len(d.conf.TLSDomains) > 0 {
			return d.web.StartWithAutoTLS(ctx, d.conf.TLSDomains, d.conf.CertCacheDir)
		}
		return d.web.Start(ctx)
	})

	g.Go(func() error {
		d.recordViews(ctx)
		return nil
	})

	g.Go(func() error {
		d.observeDiagnostics(ctx)
		return nil
	})

	return g.Wait()
}

// recordViews appends every published view to the history store.
func (d *Dashboard) recordViews(ctx context.Context) {
	sub := d.bus.Subscribe()
	defer d.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-sub:
			if !ok {
				return
			}
			if err := d.store.Save(view); err != nil {
				d.logger.Warn("failed to record portfolio view", zap.Error(err))
			}
		}
	}
}

// observeDiagnostics drains transport errors from both channels. They
// are observational only: the dashboard keeps serving stale data.
func (d *Dashboard) observeDiagnostics(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-d.priceSock.Diagnostics():
			d.logger.Debug("price stream diagnostic", zap.Error(err))
		case err := <-d.balanceSock.Diagnostics():
			d.logger.Debug("balance stream diagnostic", zap.Error(err))
		}
	}
}

func (d *Dashboard) shutdown() {
	d.aggregator.Close()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("failed to close valuation history", zap.Error(err))
	}
}
