// loader ingests landed files from object storage into catalog tables and
// archives them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lakeloader/internal/api"
	"lakeloader/internal/archive"
	"lakeloader/internal/catalog"
	"lakeloader/internal/config"
	"lakeloader/internal/credentials"
	"lakeloader/internal/db"
	"lakeloader/internal/db/repository"
	"lakeloader/internal/objstore"
	"lakeloader/internal/run"
	"lakeloader/internal/stream"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "loader",
		Short:         "Landing-zone ingestion loader",
		Long:          "Watches an object storage landing area and streams arriving files into catalog tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env vars take precedence)")

	rootCmd.AddCommand(newRunCmd(&configPath))
	rootCmd.AddCommand(newServeCmd(&configPath))
	return rootCmd
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one ingestion pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			loader, cleanup, err := buildLoader(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			reporter, err := loader.orchestrator.Execute(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(reporter.String())
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled ingestion passes with the status API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if schedule != "" {
				cfg.Schedule = schedule
			}
			if cfg.Schedule == "" {
				return fmt.Errorf("serve mode needs a schedule (--schedule or RUN_SCHEDULE)")
			}

			loader, cleanup, err := buildLoader(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			return serve(cmd.Context(), cfg, loader, logger)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron spec for repeated passes, e.g. "*/5 * * * *"`)
	return cmd
}

func loadConfig(configPath string) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, nil, err
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

// loader bundles the wired components of one process.
type loader struct {
	orchestrator *run.Orchestrator
	readDB       *sql.DB
}

func buildLoader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*loader, func(), error) {
	issuer, err := credentials.NewHTTPIssuer(cfg.Identity)
	if err != nil {
		return nil, nil, err
	}
	creds := credentials.NewManager(issuer, credentials.DefaultRetryPolicy(), cfg.Identity.ExpirySkew, nil, logger)

	metaDB, err := db.OpenSQLite(cfg.MetastorePath, "read", 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open metastore: %w", err)
	}
	metastore := catalog.NewMetastoreClient(metaDB)

	writeDB, readDB, err := db.OpenSQLitePair(cfg.RunDBPath, 0)
	if err != nil {
		metaDB.Close()
		return nil, nil, fmt.Errorf("open run history: %w", err)
	}
	if err := db.RunMigrations(writeDB); err != nil {
		metaDB.Close()
		writeDB.Close()
		readDB.Close()
		return nil, nil, err
	}

	lakeDB, err := stream.OpenLake(ctx, cfg.MetastorePath, cfg.CatalogName)
	if err != nil {
		metaDB.Close()
		writeDB.Close()
		readDB.Close()
		return nil, nil, err
	}

	provider := objstore.NewProvider(cfg, creds)

	strategy, err := archive.StrategyNamed(cfg.ArchiveStrategy)
	if err != nil {
		metaDB.Close()
		writeDB.Close()
		readDB.Close()
		lakeDB.Close()
		return nil, nil, err
	}

	engine := stream.NewDuckDBEngine(
		lakeDB,
		provider,
		metastore,
		creds.Current,
		stream.SecretConfig{
			Backend:      cfg.StorageBackend,
			S3Endpoint:   cfg.S3Endpoint,
			S3Region:     cfg.S3Region,
			AzureAccount: cfg.AzureAccount,
		},
		cfg.CatalogName,
		nil,
		logger,
	)

	orchestrator := run.NewOrchestrator(run.Options{
		Credentials:   creds,
		Resolver:      catalog.NewResolver(metastore, logger),
		StoreProvider: provider,
		Engine:        engine,
		Archiver:      archive.NewArchiver(provider, strategy, cfg.ArchivePrefix, logger),
		Repository:    repository.NewRunHistoryRepo(writeDB),
		Schema:        cfg.SchemaName,
		LandingPrefix: cfg.LandingPrefix,
		ArchivePrefix: cfg.ArchivePrefix,
		Logger:        logger,
	})

	cleanup := func() {
		lakeDB.Close()
		readDB.Close()
		writeDB.Close()
		metaDB.Close()
	}
	return &loader{orchestrator: orchestrator, readDB: readDB}, cleanup, nil
}

// serve runs the cron-scheduled passes and the status API until a signal
// arrives. Overlapping passes are skipped while one is still running.
func serve(ctx context.Context, cfg *config.Config, l *loader, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(repository.NewRunHistoryRepo(l.readDB), logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var passMu sync.Mutex
	pass := func() {
		if !passMu.TryLock() {
			logger.Warn("previous pass still running, skipping this trigger")
			return
		}
		defer passMu.Unlock()

		reporter, err := l.orchestrator.Execute(ctx)
		if err != nil {
			logger.Error("ingestion pass failed", "error", err)
			return
		}
		fmt.Print(reporter.String())
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Schedule, pass); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("status API listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start()
		logger.Info("scheduler started", "schedule", cfg.Schedule)
		<-ctx.Done()

		stopCtx := scheduler.Stop()
		<-stopCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
