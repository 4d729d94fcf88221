// Command server runs the analytics core's REST/SSE facade.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/analytics-core/config"
	"github.com/becomeliminal/analytics-core/deals"
	"github.com/becomeliminal/analytics-core/engine"
	"github.com/becomeliminal/analytics-core/httpapi"
	"github.com/becomeliminal/analytics-core/logging"
	"github.com/becomeliminal/analytics-core/store"
	"github.com/becomeliminal/analytics-core/tools"
	"github.com/becomeliminal/analytics-core/weekly"
)

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Serves the analytics core's REST/SSE facade",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := logging.New(cfg.Dev, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	items, reports, closeStore, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer closeStore()

	if len(cfg.Deals.AllowedCategories) > 0 {
		allowed := make(map[string]bool, len(cfg.Deals.AllowedCategories))
		for _, c := range cfg.Deals.AllowedCategories {
			allowed[c] = true
		}
		deals.AllowedCategories = allowed
	}

	client := anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))
	backend := tools.NewHTTPSearchBackend(os.Getenv("SEARCH_BACKEND_URL"), os.Getenv("SEARCH_BACKEND_KEY"), nil)
	audit := engine.NewZapAuditLogger(logger)
	capability := weekly.NewEngineCapability(&client, backend, cfg.Search.Model, searchGuardrails(cfg), audit)

	pipeline := weekly.NewPipeline(items, reports, capability, cfg.Weekly.TopN, cfg.Weekly.MinSavingsUSD, cfg.Search.MaxFindings)

	srv := httpapi.New(items, reports, pipeline, cfg.CORS.AllowOrigins, cfg.Search.Model, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	logger.Sugar().Infof("analytics facade listening on %s", cfg.HTTP.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// searchGuardrails builds the per-user search quota, or nil (no limit)
// when search.user_hourly_quota is 0.
func searchGuardrails(cfg *config.Config) engine.Guardrails {
	if cfg.Search.UserHourlyQuota <= 0 {
		return nil
	}
	return engine.NewSearchQuota(cfg.Search.UserHourlyQuota, time.Hour)
}

// openStores builds the purchase/report stores for cfg.Store.Driver,
// wrapping the purchase store in a Ristretto read-through cache for every
// backend except the in-memory one, which is already as fast as the cache
// would be.
func openStores(cfg *config.Config) (store.PurchaseStore, store.ReportStore, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryPurchaseStore(), store.NewMemoryReportStore(), noop, nil

	case "sqlite":
		db, err := store.OpenSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, nil, noop, err
		}
		items, err := store.NewCachedPurchaseStore(store.NewSQLitePurchaseStore(db), nil)
		if err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		return items, store.NewSQLiteReportStore(db), func() { db.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Store.DSN)
		if err != nil {
			return nil, nil, noop, err
		}
		items, err := store.NewCachedPurchaseStore(store.NewPostgresPurchaseStore(pool), nil)
		if err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		return items, store.NewPostgresReportStore(pool), func() { pool.Close() }, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}
}
