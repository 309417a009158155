// Package main runs a one-off reconcile of the catalog's derived data.
//
// It recomputes book counts, review counts, average ratings and embedded
// snapshots from live records and reports what it corrected. Run it after
// an outage that left propagation warnings, or on a schedule.
//
// Usage:
//
//	DATA_PATH=~/catalog go run ./cmd/reconcile
//	DATA_PATH=~/catalog go run ./cmd/reconcile -reindex
package main

import (
	"context"
	"encoding/json/v2"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/di"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/service"
)

var reindex = flag.Bool("reindex", false, "Also rebuild the search index")

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Settings come from the environment and .env only; flags belong to this tool.
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}

	injector := di.NewContainer()
	do.OverrideValue(injector, cfg)
	if err := di.Bootstrap(injector); err != nil {
		return err
	}
	defer func() { _ = injector.Shutdown() }()

	log := do.MustInvoke[*logger.Logger](injector)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := do.MustInvoke[*service.ReconcileService](injector).ReconcileAll(ctx)
	if err != nil {
		return err
	}

	if *reindex {
		n, err := do.MustInvoke[*service.BookService](injector).Reindex(ctx)
		if err != nil {
			return err
		}
		log.Info("search index rebuilt", "documents", n)
	}

	return json.MarshalWrite(os.Stdout, report, json.Deterministic(true))
}
