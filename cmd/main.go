// Command folio runs the consolidated portfolio dashboard: it fetches
// the user's balance snapshot, keeps it fresh over the balance push
// channel, follows live multi-exchange prices, and serves the enriched
// valuation over HTTP/SSE.
//
// Usage:
//
//	folio setup              (interactive wizard, writes config.gen.yaml)
//	folio --config config.yaml
//	folio --user <id> (remaining settings via CLI flags)
//
// Required environment variable:
//
//	FOLIO_API_TOKEN: bearer token for the gateway REST and stream APIs
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal"
	"github.com/vadiminshakov/folio/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dashboard, err := internal.NewDashboard(conf, logger)
	if err != nil {
		logger.Fatal("failed to build dashboard", zap.Error(err))
	}

	logger.Info("starting portfolio dashboard",
		zap.String("gateway", conf.GatewayURL),
		zap.String("web", conf.WebAddr))

	if err := dashboard.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("dashboard stopped", zap.Error(err))
	}
}
