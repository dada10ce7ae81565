package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/tsukuyomi/internal/api"
	"github.com/Togather-Foundation/tsukuyomi/internal/api/handlers"
	"github.com/Togather-Foundation/tsukuyomi/internal/app"
	"github.com/Togather-Foundation/tsukuyomi/internal/auth"
	"github.com/Togather-Foundation/tsukuyomi/internal/config"
	"github.com/Togather-Foundation/tsukuyomi/internal/domain/posts"
	"github.com/Togather-Foundation/tsukuyomi/internal/metrics"
	"github.com/Togather-Foundation/tsukuyomi/internal/server"
	"github.com/Togather-Foundation/tsukuyomi/internal/storage/postgres"
	"github.com/Togather-Foundation/tsukuyomi/internal/telemetry"
	"github.com/Togather-Foundation/tsukuyomi/internal/templates"
	"github.com/Togather-Foundation/tsukuyomi/web"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and begin accepting requests.

The server will:
- Load configuration from environment variables, overlaid with --config
- Serve the example routes, /metrics and the health endpoints
- Report not ready and drain connections on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  tsukuyomi serve

  # Start on a specific host and port
  tsukuyomi serve --host 127.0.0.1 --port 9090

  # Start with a config file and debug logging
  tsukuyomi serve --config /etc/tsukuyomi/config.yaml --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	return cmd
}

// application is the wired server without its listener.
type application struct {
	app    *app.App
	health *handlers.HealthChecker
	close  func()
}

// openPosts picks the Postgres store when a database URL is configured and
// the in-memory store otherwise.
func openPosts(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger, health *handlers.HealthChecker) (posts.Repository, func(), error) {
	if cfg.URL == "" {
		logger.Info().Msg("posts stored in memory")
		return posts.NewMemoryRepository(), func() {}, nil
	}

	if cfg.MigrateOnStart {
		if err := postgres.MigrateUp(cfg.URL); err != nil {
			return nil, nil, err
		}
	}
	pool, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	repo, err := postgres.NewPostRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	health.Register("database", handlers.PingCheck("database", repo))
	logger.Info().Int32("max_conns", pool.Config().MaxConns).Msg("posts stored in postgres")
	return repo, pool.Close, nil
}

// assets returns the embedded templates and static files unless the config
// points at directories on disk.
func assets(cfg config.AssetsConfig) (templatesFS, staticFS fs.FS) {
	templatesFS, staticFS = web.Templates(), web.Static()
	if cfg.TemplatesDir != "" {
		templatesFS = os.DirFS(cfg.TemplatesDir)
	}
	if cfg.StaticDir != "" {
		staticFS = os.DirFS(cfg.StaticDir)
	}
	return templatesFS, staticFS
}

func buildApplication(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*application, error) {
	keys, err := auth.DeriveKeys([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("derive keys: %w", err)
	}

	templatesFS, staticFS := assets(cfg.Assets)
	engine, err := templates.Load(templatesFS)
	if err != nil {
		return nil, err
	}

	health := handlers.NewHealthChecker(Version, GitCommit)
	repo, closeRepo, err := openPosts(ctx, cfg.Database, logger, health)
	if err != nil {
		return nil, err
	}
	service := posts.NewService(repo)
	health.Register("posts", handlers.StoreCheck(service))
	health.Register("templates", handlers.FSCheck("templates", templatesFS))
	health.Register("static", handlers.FSCheck("static assets", staticFS))

	a, err := api.NewRouter(api.Deps{
		Config:    cfg,
		Logger:    logger,
		Version:   versionInfo(),
		JWT:       auth.NewJWTManager(keys.JWT, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer),
		Keys:      keys,
		Templates: engine,
		Static:    staticFS,
		Posts:     service,
		Health:    health,
	})
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("build router: %w", err)
	}
	return &application{app: a, health: health, close: closeRepo}, nil
}

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Str("profile", cfg.Profile).Msg("starting tsukuyomi")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	metrics.Init(Version, GitCommit, BuildDate)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	application, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.close()
	logger.Info().Int("routes", len(application.app.Routes())).Msg("routes registered")

	go func() {
		<-ctx.Done()
		application.health.SetReady(false)
	}()

	return server.Run(ctx, server.FromConfig(cfg.Server, application.app, logger))
}
