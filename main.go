package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cntrlcomply/backend/controller"
	"github.com/cntrlcomply/backend/initializers"
	"github.com/cntrlcomply/backend/middleware"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/cntrlcomply/backend/search"
	"github.com/cntrlcomply/backend/seed"
	services "github.com/cntrlcomply/backend/service"
	"github.com/cntrlcomply/backend/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	root := &cobra.Command{
		Use:           "cntrlcomply",
		Short:         "Regulatory compliance workflow backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var envFile string
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(envFile, true, runServe)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(envFile, false, func(ctx context.Context, a *app) error { return nil })
		},
	}

	var printOnly bool
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				_, err := cmd.OutOrStdout().Write(seed.Raw())
				return err
			}
			return withApp(envFile, true, func(ctx context.Context, a *app) error {
				a.log.Infof("[Seed] fixtures applied")
				return nil
			})
		},
	}
	seedCmd.Flags().BoolVar(&printOnly, "print", false, "Print the embedded fixtures instead of loading them")

	root.AddCommand(serveCmd, migrateCmd, seedCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg initializers.Config
	log *zap.SugaredLogger
	db  *gorm.DB
}

// withApp loads configuration, connects and migrates the database, optionally
// seeds it, then runs fn with a context cancelled on SIGINT/SIGTERM.
func withApp(envFile string, applySeed bool, fn func(context.Context, *app) error) error {
	if err := initializers.LoadEnv(envFile); err != nil {
		return err
	}
	cfg, err := initializers.LoadConfig()
	if err != nil {
		return err
	}
	log, err := initializers.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := initializers.ConnectDB(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := initializers.Migrate(db, cfg, log); err != nil {
		return err
	}
	if applySeed {
		fixtures, err := seed.Load()
		if err != nil {
			return err
		}
		if err := seed.Apply(db, fixtures); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, &app{cfg: cfg, log: log, db: db})
}

func runServe(ctx context.Context, a *app) error {
	cfg, log, db := a.cfg, a.log, a.db

	api := provider.NewMockProvider(provider.Config{
		FailureRate: cfg.MockFailureRate,
		DelayScale:  cfg.MockDelayScale,
	}, log)
	hub := notify.NewHub(notify.DefaultConfig(), log)

	var store storage.ObjectStore = &storage.URLStore{BaseURL: cfg.S3PublicURL, Bucket: cfg.S3Bucket}
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Store(storage.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		}, log)
		if err != nil {
			return err
		}
		store = s3Store
	}

	var index search.Index = search.NewDBIndex(db)
	if cfg.ElasticsearchURL != "" {
		es, err := search.NewElasticIndex(cfg.ElasticsearchURL, cfg.SearchIndex, log)
		if err != nil {
			return err
		}
		index = es
	}

	audit := services.NewAuditService(db, log)
	audit.MirrorTo(api)

	searchService := services.NewSearchService(db, log, index)
	ingestion := services.NewIngestionService(db, log, audit, hub, api, store, index)
	c := controller.NewController(controller.Services{
		Workspace:  services.NewWorkspaceService(db, log),
		Regulatory: services.NewRegulatoryService(db, log),
		Gaps:       services.NewGapService(db, log, audit, hub, api),
		Amendments: services.NewAmendmentService(db, log, audit, hub, api,
			services.ScaleAmendmentDelay(services.DefaultAmendmentConfig(), cfg.MockDelayScale)),
		Analysis:  services.NewAnalysisService(db, log, audit, hub, api),
		Reports:   services.NewReportService(db, log, audit, hub, api),
		Audit:     audit,
		Users:     services.NewUserService(db, log, audit, hub),
		Ingestion: ingestion,
		Search:    searchService,
	}, hub, log)

	if cfg.ElasticsearchURL != "" {
		if n, err := searchService.Reindex(ctx); err != nil {
			log.Warnf("[Serve] initial reindex failed: %v", err)
		} else {
			log.Infof("[Serve] indexed %d documents", n)
		}
	}

	if cfg.ScanInterval > 0 {
		go ingestion.Monitor(ctx, cfg.ScanInterval)
	}

	global := middleware.NewRateLimiter(cfg.GlobalRPS, cfg.GlobalBurst)
	strict := middleware.NewRateLimiter(cfg.StrictRPS, cfg.StrictBurst)
	go global.RunCleanup(ctx, time.Minute)
	go strict.RunCleanup(ctx, time.Minute)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: controller.NewRouter(c, controller.RouterConfig{
			CORSOrigins: cfg.CORSOrigins,
			Global:      global,
			Strict:      strict,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("[Serve] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infof("[Serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
