// Package main is the entry point for the TeamDrop server.
// TeamDrop is a multi-user file sharing service with project workspaces,
// collaborator permissions, share links, and project chat.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/teamdrop/internal/auth"
	"github.com/prn-tf/teamdrop/internal/cache/memory"
	"github.com/prn-tf/teamdrop/internal/config"
	"github.com/prn-tf/teamdrop/internal/handler"
	"github.com/prn-tf/teamdrop/internal/lock"
	"github.com/prn-tf/teamdrop/internal/repository"
	"github.com/prn-tf/teamdrop/internal/repository/postgres"
	redisrepo "github.com/prn-tf/teamdrop/internal/repository/redis"
	"github.com/prn-tf/teamdrop/internal/repository/sqlite"
	"github.com/prn-tf/teamdrop/internal/service"
	"github.com/prn-tf/teamdrop/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// sessionPurgeInterval is how often expired sessions are swept.
const sessionPurgeInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting TeamDrop server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Database
	repos, dbHealth, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbHealth.Close()

	// Cache and distributed locks. Redis when enabled, in-process otherwise.
	var (
		cache  repository.Cache
		locker lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		cache = redisrepo.NewCache(client)
		locker = lock.NewRedisLocker(redisrepo.NewLock(client))
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()
		memLocker := lock.NewMemoryLocker()
		defer memLocker.Stop()
		cache = memCache
		locker = memLocker
	}

	// Storage backend
	backend, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	// Services
	users := service.NewUserService(repos.User, repos.Session, service.UserServiceConfig{
		SessionTTL:        cfg.Auth.SessionTTL,
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, logger)
	sessions := service.NewSessionService(repos.Session, repos.User, cache, logger)
	projects := service.NewProjectService(repos.Project, repos.File, repos.User, backend, locker, logger)
	files := service.NewFileService(repos.File, repos.Project, repos.Message, backend, cfg.Server.MaxUploadSize, logger)
	shares := service.NewShareService(repos.Share, repos.Project, repos.File, backend, locker, logger)
	messages := service.NewMessageService(repos.Message, repos.Project, logger)

	// HTTP layer
	metrics := handler.NewMetrics()
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(users, sessions, logger),
		UserHandler:    handler.NewUserHandler(users, logger),
		ProjectHandler: handler.NewProjectHandler(projects, logger),
		FileHandler:    handler.NewFileHandler(files, metrics, logger),
		ShareHandler:   handler.NewShareHandler(shares, metrics, logger),
		MessageHandler: handler.NewMessageHandler(messages, logger),
		Metrics:        metrics,
		AuthMiddleware: auth.Middleware(sessions, logger),
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background sweep of expired sessions.
	go purgeSessions(ctx, sessions, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// openDatabase connects to the configured backend and runs migrations.
func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	if cfg.Database.IsEmbedded() {
		dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
		if cfg.Database.JournalMode != "" {
			dbCfg.JournalMode = cfg.Database.JournalMode
		}
		if cfg.Database.BusyTimeout > 0 {
			dbCfg.BusyTimeout = cfg.Database.BusyTimeout
		}
		if cfg.Database.CacheSize != 0 {
			dbCfg.CacheSize = cfg.Database.CacheSize
		}
		if cfg.Database.SynchronousMode != "" {
			dbCfg.SynchronousMode = cfg.Database.SynchronousMode
		}

		db, err := sqlite.NewDB(ctx, dbCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewRepositories(db), db, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewRepositories(db), db, nil
}

// openStorage builds the configured file storage backend.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Backend(ctx, cfg.S3)
	default:
		return storage.NewFilesystemBackend(cfg.DataDir)
	}
}

// purgeSessions periodically deletes expired sessions.
func purgeSessions(ctx context.Context, sessions *service.SessionService, logger zerolog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("session purge failed")
				continue
			}
			if n > 0 {
				logger.Info().Int64("purged", n).Msg("expired sessions removed")
			}
		}
	}
}

// setupLogger configures zerolog from the logging config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if cfg.Format == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	return logger
}
