// Command weekly-suggestions runs the weekly alternative-suggestions batch
// job across every user active in the target week.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/analytics-core/config"
	"github.com/becomeliminal/analytics-core/engine"
	"github.com/becomeliminal/analytics-core/logging"
	"github.com/becomeliminal/analytics-core/store"
	"github.com/becomeliminal/analytics-core/tools"
	"github.com/becomeliminal/analytics-core/weekly"
)

func main() {
	var (
		configPath  string
		weekFlag    string
		userFlag    string
		dryRun      bool
		concurrency int
		jobLogPath  string
	)

	rootCmd := &cobra.Command{
		Use:           "weekly-suggestions",
		Short:         "Runs the weekly alternative-suggestions batch job",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(runOpts{
				configPath:  configPath,
				week:        weekFlag,
				userID:      userFlag,
				dryRun:      dryRun,
				concurrency: concurrency,
				jobLogPath:  jobLogPath,
			})
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&weekFlag, "week", "", "ISO week (YYYY-MM-DD) to process; defaults to the most recently completed week")
	rootCmd.Flags().StringVar(&userFlag, "user", "", "limit the run to a single user_id; defaults to every active user that week")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the pipeline without persisting reports")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel users processed at once (default: concurrency.users from config)")
	rootCmd.Flags().StringVar(&jobLogPath, "job-log", "", "path to additionally persist the job log JSON")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

type runOpts struct {
	configPath  string
	week        string
	userID      string
	dryRun      bool
	concurrency int
	jobLogPath  string
}

// configError marks an error as the CLI's exit code 2 (configuration
// error) rather than exit code 1 (at least one user failed).
type configError struct{ err error }

func (c configError) Error() string { return c.err.Error() }
func (c configError) Unwrap() error { return c.err }

func exitCodeFor(err error) int {
	var ce configError
	if asConfigError(err, &ce) {
		return 2
	}
	return 1
}

func asConfigError(err error, target *configError) bool {
	for e := err; e != nil; {
		if ce, ok := e.(configError); ok {
			*target = ce
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

func run(opts runOpts) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return configError{fmt.Errorf("configuration error: %w", err)}
	}

	var weekStart time.Time
	if opts.week != "" {
		weekStart, err = time.Parse("2006-01-02", opts.week)
		if err != nil {
			return configError{fmt.Errorf("--week must be formatted YYYY-MM-DD: %w", err)}
		}
	}

	logger, err := logging.New(cfg.Dev, cfg.LogLevel)
	if err != nil {
		return configError{fmt.Errorf("failed to build logger: %w", err)}
	}
	defer logger.Sync()

	items, reports, closeStore, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer closeStore()

	lease, err := store.NewRistrettoLease()
	if err != nil {
		return fmt.Errorf("failed to build lease store: %w", err)
	}

	client := anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))
	backend := tools.NewHTTPSearchBackend(os.Getenv("SEARCH_BACKEND_URL"), os.Getenv("SEARCH_BACKEND_KEY"), nil)
	audit := engine.NewZapAuditLogger(logger)
	var guardrails engine.Guardrails
	if cfg.Search.UserHourlyQuota > 0 {
		guardrails = engine.NewSearchQuota(cfg.Search.UserHourlyQuota, time.Hour)
	}
	capability := weekly.NewEngineCapability(&client, backend, cfg.Search.Model, guardrails, audit)

	pipeline := weekly.NewPipeline(items, reports, capability, cfg.Weekly.TopN, cfg.Weekly.MinSavingsUSD, cfg.Search.MaxFindings)
	runner := weekly.NewBatchRunner(pipeline, items, lease)

	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = cfg.Concurrency.Users
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, err := runner.RunBatch(ctx, weekly.BatchParams{
		WeekStart:   weekStart,
		UserID:      opts.userID,
		DryRun:      opts.dryRun,
		Concurrency: concurrency,
	})
	if err != nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	if err := emitJobLog(log, opts.jobLogPath); err != nil {
		logger.Sugar().Warnf("failed to persist job log: %v", err)
	}

	logger.Sugar().Infof("week %s: %d/%d users succeeded, %s total savings",
		log.WeekStart.Format("2006-01-02"), log.Successful, log.TotalUsers,
		humanize.FormatFloat("$#,###.##", log.TotalSavings))

	if log.Failed > 0 {
		return fmt.Errorf("%d of %d users failed", log.Failed, log.TotalUsers)
	}
	return nil
}

func emitJobLog(log *weekly.JobLog, path string) error {
	b, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	if path == "" {
		return nil
	}
	return os.WriteFile(path, b, 0o644)
}

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
		return store.NewSQLitePurchaseStore(db), store.NewSQLiteReportStore(db), func() { db.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Store.DSN)
		if err != nil {
			return nil, nil, noop, err
		}
		return store.NewPostgresPurchaseStore(pool), store.NewPostgresReportStore(pool), func() { pool.Close() }, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}
}
