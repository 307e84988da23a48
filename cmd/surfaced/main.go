package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/codec"
	"github.com/totegamma/nftsurface/internal/config"
	"github.com/totegamma/nftsurface/internal/domain"
	"github.com/totegamma/nftsurface/internal/infrastructure/providers"
	"github.com/totegamma/nftsurface/internal/infrastructure/repository"
	"github.com/totegamma/nftsurface/internal/present/rest"
	"github.com/totegamma/nftsurface/internal/present/rest/middleware"
	"github.com/totegamma/nftsurface/internal/service"
	"github.com/totegamma/nftsurface/internal/usecase"
)

func main() {
	configPath := flag.String("config", "/etc/nftsurface/config.yaml", "path to the configuration file")
	listenAddr := flag.String("listen", ":8000", "listen address")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracing(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(ctx)
	}

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := providers.MigrateDatabase(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := providers.NewRedis(conf.Server)
	mc := providers.NewMemcache(conf.Server.MemcachedAddr)

	assetRepo := repository.NewAssetRepository(db, mc)
	accessRepo := repository.NewAccessRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	transactor := repository.NewTransactor(db)

	signal := service.NewSignalService(rdb)
	feed := service.NewEventFeed(signal)

	accessUC := usecase.NewAccessUsecase(accessRepo)
	settlementUC := usecase.NewSettlementUsecase(settlementRepo, accessUC, feed)
	ledgerUC := usecase.NewLedgerUsecase(assetRepo, accessUC, settlementUC, codec.New(conf.Ledger.Domain), transactor, feed)

	if err := seed(ctx, conf, accessRepo, settlementRepo); err != nil {
		slog.Error("failed to seed initial state", slog.String("error", err.Error()))
		os.Exit(1)
	}

	auth := service.NewAuthService(&conf.Ledger)
	authMiddleware := middleware.NewAuthMiddleware(auth, conf.Ledger)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("nftsurface"))
	}
	e.Use(authMiddleware.IdentifyIdentity)

	handler := rest.NewHandler(conf.Ledger, ledgerUC, settlementUC, accessUC, signal)
	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(*listenAddr))
}

// seed installs the configured authority and payee table on first boot.
// Every write here is idempotent so restarts are safe.
func seed(ctx context.Context, conf config.Config, access *repository.AccessRepository, settlement *repository.SettlementRepository) error {

	for _, role := range []string{domain.RoleAdmin, domain.RoleAgent, domain.RoleTreasurer} {
		if err := access.GrantRole(ctx, role, conf.Ledger.Authority); err != nil {
			return err
		}
	}

	if len(conf.Settlement.Payees) > 0 {
		payees := make([]domain.Payee, 0, len(conf.Settlement.Payees))
		for _, p := range conf.Settlement.Payees {
			payees = append(payees, domain.Payee{Account: nftsurface.NormalizeAddress(p.Account), Shares: p.Shares})
		}
		if err := settlement.SetPayees(ctx, payees); err != nil {
			return err
		}
	}

	if conf.Settlement.RoyaltyBasisPoints > 0 {
		current, err := settlement.Royalty(ctx)
		if err != nil {
			return err
		}
		// the configured rate only applies the first time; later changes go
		// through the admin API
		if current == 0 {
			if err := settlement.SetRoyalty(ctx, uint32(conf.Settlement.RoyaltyBasisPoints)); err != nil {
				return err
			}
		}
	}

	return nil
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("nftsurface")),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
