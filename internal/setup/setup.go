package setup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robalyx/shopledger/internal/cache"
	"github.com/robalyx/shopledger/internal/database"
	"github.com/robalyx/shopledger/internal/redis"
	"github.com/robalyx/shopledger/internal/setup/config"
	"github.com/robalyx/shopledger/internal/setup/telemetry"
	"go.uber.org/zap"
)

// ErrPendingMigrations is returned when the schema is behind and automatic
// migration was not requested.
var ErrPendingMigrations = errors.New("database migrations are pending, run `ledger db migrate`")

// Options controls how the application is bootstrapped.
type Options struct {
	LogDir string
	// AutoMigrate applies pending migrations instead of failing.
	AutoMigrate bool
	// SkipMigrationCheck connects without looking at migration status. The
	// migration commands themselves use it.
	SkipMigrationCheck bool
}

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config       // Application configuration
	Logger       *zap.Logger          // Main application logger
	DBLogger     *zap.Logger          // Database-specific logger
	DB           database.Client      // Database connection pool
	RedisManager *redis.Manager       // Redis connection manager
	Standings    *cache.StandingCache // Cached shop standings
	LogManager   *telemetry.Manager   // Log management system
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, opts Options) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(opts.LogDir, &cfg.Debug)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	logger.Info("Starting shopledger",
		zap.String("version", config.RepositoryVersion),
		zap.String("sessionDir", logManager.GetCurrentSessionDir()))
	logger.Debug("Loaded configuration", zap.String("dir", configDir))

	// Redis is optional, the standing cache is disabled without it
	redisManager := redis.NewManager(&cfg.Redis, logger)
	standings := newStandingCache(ctx, cfg, redisManager, logger)

	db, err := connectDatabase(ctx, cfg, standings, dbLogger.Named("database"), opts)
	if err != nil {
		redisManager.Close()
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		Standings:    standings,
		LogManager:   logManager,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup() {
	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections
	s.RedisManager.Close()

	// Sync buffered logs last so shutdown messages are kept
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}
}

// newStandingCache builds the standing cache, falling back to a disabled
// cache when Redis is not configured or not reachable.
func newStandingCache(
	ctx context.Context, cfg *config.Config, redisManager *redis.Manager, logger *zap.Logger,
) *cache.StandingCache {
	ttl := time.Duration(cfg.Reputation.StandingCacheTTL) * time.Second
	if !redisManager.Configured() || ttl <= 0 {
		logger.Info("Standing cache disabled")
		return cache.NewStandingCache(nil, 0, logger)
	}

	if err := redisManager.Ping(ctx, redis.StandingDBIndex); err != nil {
		logger.Warn("Redis unavailable, standing cache disabled", zap.Error(err))
		return cache.NewStandingCache(nil, 0, logger)
	}

	client, err := redisManager.GetClient(redis.StandingDBIndex)
	if err != nil {
		logger.Warn("Failed to get Redis client, standing cache disabled", zap.Error(err))
		return cache.NewStandingCache(nil, 0, logger)
	}

	return cache.NewStandingCache(client, ttl, logger)
}

// connectDatabase opens the database and checks that the schema is current.
func connectDatabase(
	ctx context.Context, cfg *config.Config, standings *cache.StandingCache, dbLogger *zap.Logger, opts Options,
) (database.Client, error) {
	db, err := database.NewConnection(ctx, cfg, standings, dbLogger, opts.AutoMigrate)
	if err != nil {
		return nil, err
	}

	if opts.SkipMigrationCheck || opts.AutoMigrate {
		return db, nil
	}

	migrator := db.Migrator()
	if err := migrator.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	if unapplied := ms.Unapplied(); len(unapplied) > 0 {
		db.Close()
		return nil, fmt.Errorf("%w (%d unapplied)", ErrPendingMigrations, len(unapplied))
	}

	return db, nil
}
