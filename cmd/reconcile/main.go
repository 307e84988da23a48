// Command reconcile runs one catalog reconciliation pass against a ledger
// instance and a pinning service, then atomically rewrites the catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/totegamma/nftsurface/internal/codec"
	"github.com/totegamma/nftsurface/internal/config"
	"github.com/totegamma/nftsurface/internal/infrastructure/providers"
	"github.com/totegamma/nftsurface/internal/reconciler"
)

func main() {
	configPath := flag.String("config", "/etc/nftsurface/config.yaml", "path to the configuration file")
	dryRun := flag.Bool("dry-run", false, "publish to an in-memory store and do not rewrite the catalog")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	catalogPath := conf.Reconciler.CatalogPath
	cat, err := reconciler.LoadCatalog(catalogPath)
	if err != nil {
		slog.Error("failed to load catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// a catalog produced by an earlier run carries the signing domain it was
	// reconciled against; it takes precedence over the local configuration
	ledgerConf := conf.Ledger
	ledgerConf.Domain = cat.SigningDomain(conf.Ledger.Domain)

	ledger := providers.NewClient(conf.Reconciler.LedgerEndpoint)

	// refuse to sign for an instance whose identity does not match ours
	wks, err := ledger.GetWellKnown(ctx)
	if err != nil {
		slog.Error("failed to reach ledger instance", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if wks.Domain != ledgerConf.Domain {
		slog.Error("ledger instance reports a different signing domain",
			slog.String("expected", fmt.Sprintf("%+v", ledgerConf.Domain)),
			slog.String("got", fmt.Sprintf("%+v", wks.Domain)),
		)
		os.Exit(1)
	}

	var store reconciler.ContentStore
	if *dryRun {
		store = reconciler.NewMemoryStore()
	} else {
		store = reconciler.NewPinningStore(
			conf.Reconciler.PinningEndpoint,
			conf.Reconciler.PinningKey,
			conf.Reconciler.PinningSecret,
		)
	}

	rec := reconciler.New(
		ledger,
		store,
		reconciler.StdImageProcessor{},
		codec.New(ledgerConf.Domain),
		ledgerConf,
		filepath.Dir(catalogPath),
	)

	out, summary, err := rec.Run(ctx, cat)
	if err != nil {
		slog.Error("reconciliation failed, catalog left untouched", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if !*dryRun {
		if err := reconciler.SaveCatalog(catalogPath, out); err != nil {
			slog.Error("failed to write catalog", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	report, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(report))
}
