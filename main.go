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

	"structura/auth"
	"structura/config"
	"structura/database"
	"structura/handlers"
	"structura/logger"
	"structura/middleware"
	"structura/services"
	"structura/vault"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "structura",
		Short:         "Structura project management backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), verifyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads configuration and opens the database. Every subcommand starts here.
func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger.Init(&logger.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, TimeFormat: time.RFC3339})
	vault.SetDefaultCost(cfg.BcryptCost)

	db, err := database.Open(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and seed the first owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg, db)
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := database.SeedOwner(ctx, db, cfg.SeedOwnerEmail, cfg.SeedOwnerPassword); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	logger.Info("Schema is up to date")
	return nil
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Report projects and accounts whose links disagree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			tm := database.NewTxManager(db, cfg.TxMaxRetries, cfg.TxRetryBase)
			violations, err := services.NewAssignmentCoordinator(tm).VerifyAssignments(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range violations {
				logger.Warn("Assignment mismatch",
					"kind", v.Kind, "project_id", v.ProjectID, "account_id", v.AccountID, "detail", v.Detail)
			}
			if len(violations) > 0 {
				return fmt.Errorf("%d assignment mismatches", len(violations))
			}
			logger.Info("All assignments are consistent")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			if !skipMigrate {
				if err := migrate(cmd.Context(), cfg, db); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), cfg, db)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply the schema on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	rateCfg := middleware.RateLimitConfig{
		Rate:               cfg.LoginRateLimit,
		Route:              "login",
		TrustForwardHeader: cfg.TrustProxy,
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		rateCfg.Redis = client
	}
	loginRate, err := middleware.RateLimit(rateCfg)
	if err != nil {
		return err
	}

	router := handlers.NewRouter(handlers.Deps{
		DB:         db,
		Tx:         database.NewTxManager(db, cfg.TxMaxRetries, cfg.TxRetryBase),
		Resolver:   auth.NewResolver(nil, auth.DefaultStores(db)...),
		Logger:     logger.GetDefault(),
		LoginRate:  loginRate,
		TrustProxy: cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "addr", srv.Addr, "shared_rate_limit", rateCfg.Redis != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
