package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/auth"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/config"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpapi"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/oauth/session"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/logger"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform/instagram"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform/twitter"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/reconcile"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/scheduler"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/pg"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/tokens"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "tracker",
		Short: "Social account linking and metrics service",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := pg.New(ctx, cfg.Storage.DSN, pg.Tuning{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	sstore, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	reg := platform.NewRegistry(buildAdapters(cfg)...)
	if len(reg.Names()) == 0 {
		log.Warn("no providers enabled; auth routes will answer 404")
	}

	tm := tokens.NewManager(repo, reg)
	engine := reconcile.NewEngine(repo, reg, tm)

	router := httpapi.NewRouter(httpapi.Deps{
		Cfg:       cfg,
		Verifier:  auth.NewVerifier(cfg.Auth.SessionSecret, cfg.Auth.CookieName),
		Repo:      repo,
		Platforms: reg,
		Sessions:  session.NewResolver(sstore, cfg.IsProd()),
		Engine:    engine,
		Runner:    scheduler.NewRunner(repo, engine, cfg.RefreshJob.Parallelism),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.SessionStore.Kind {
	case "redis":
		return session.NewRedis(ctx, session.RedisConfig{
			Addr:     cfg.SessionStore.Redis.Addr,
			Password: cfg.SessionStore.Redis.Password,
			DB:       cfg.SessionStore.Redis.DB,
			Prefix:   cfg.SessionStore.Redis.Prefix,
		})
	case "", "memory":
		return session.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", cfg.SessionStore.Kind)
	}
}

func buildAdapters(cfg *config.Config) []platform.Adapter {
	var adapters []platform.Adapter
	if p := cfg.Providers.Twitter; p.Enabled {
		adapters = append(adapters, twitter.New(p.ClientID, p.ClientSecret, redirectURL(cfg, p, "twitter"), p.Scopes))
	}
	if p := cfg.Providers.Instagram; p.Enabled {
		adapters = append(adapters, instagram.New(p.ClientID, p.ClientSecret, redirectURL(cfg, p, "instagram"), p.Scopes))
	}
	return adapters
}

// redirectURL derives the provider callback URL from the public base URL
// unless the provider block pins one explicitly.
func redirectURL(cfg *config.Config, p config.Provider, name string) string {
	if p.RedirectURL != "" {
		return p.RedirectURL
	}
	return strings.TrimRight(cfg.Server.PublicURL, "/") + "/auth/" + name + "/callback"
}
