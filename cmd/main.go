package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-cz/devslog"
	"github.com/siahsang/portfolio/internal/auth"
	"github.com/siahsang/portfolio/internal/cache"
	"github.com/siahsang/portfolio/internal/config"
	"github.com/siahsang/portfolio/internal/content"
	"github.com/siahsang/portfolio/internal/core"
	"github.com/siahsang/portfolio/internal/database"
	"github.com/siahsang/portfolio/internal/media"
	"github.com/siahsang/portfolio/internal/ratelimit"
	"github.com/siahsang/portfolio/internal/utils/databaseutils"
	"github.com/spf13/cobra"
)

type application struct {
	config   *config.Config
	logger   *slog.Logger
	core     *core.Core
	auth     *auth.Auth
	media    *media.Store
	cache    cache.Cache
	limiter  *ratelimit.Limiter
	proxies  *ratelimit.Proxies
	renderer *content.Renderer
	lists    listVersions
	wg       sync.WaitGroup
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "portfolio",
		Short:         "Portfolio and blog server with an admin API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newCreateAdminCmd(),
		newRemoteCmd(),
	)
	return rootCmd
}

func configLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		handler := devslog.NewHandler(
			os.Stdout, &devslog.Options{
				HandlerOptions: &slog.HandlerOptions{
					AddSource: true,
					Level:     level,
				},
				NewLineAfterLog: false,
			})
		return slog.New(handler)
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newApplication opens and migrates the database and wires every server dependency.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, func(), error) {
	proxies, err := ratelimit.ParseProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connection established successfully", "driver", cfg.DBDriver)

	if err := database.Migrate(db, cfg.DBDriver, logger); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	listCache, err := cache.New(cache.Options{
		RedisURL:   cfg.RedisURL,
		Prefix:     "portfolio:",
		DefaultTTL: cfg.CacheTTL,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		_ = listCache.Close()
		_ = db.Close()
		return nil, nil, err
	}

	app := &application{
		config:   cfg,
		logger:   logger,
		core:     core.NewCore(db, logger, databaseutils.NewSQLTemplate(db, 3*time.Second)),
		auth:     auth.New(cfg.JWTSecret, cfg.TokenTTL),
		media:    media.NewStore(cfg.UploadsDir, cfg.ImageMaxWidth, cfg.MaxUploadBytes()),
		cache:    listCache,
		limiter:  ratelimit.New(cfg.LoginRate, cfg.LoginBurst),
		proxies:  proxies,
		renderer: content.NewRenderer(),
	}

	cleanup := func() {
		if err := listCache.Close(); err != nil {
			logger.Error("Errors closing cache", "error", err)
		}
		if err := db.Close(); err != nil {
			logger.Error("Errors closing database connection", "error", err)
		}
	}
	return app, cleanup, nil
}
