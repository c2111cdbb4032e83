package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nicpaesk/killer-game/internal/dependencies/clock"
	"github.com/nicpaesk/killer-game/internal/dependencies/random"
	"github.com/nicpaesk/killer-game/internal/realtime"
	"github.com/nicpaesk/killer-game/internal/results"
	"github.com/nicpaesk/killer-game/internal/services/assignment"
	"github.com/nicpaesk/killer-game/internal/services/game"
	"github.com/nicpaesk/killer-game/internal/services/identity"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/storage"
	"github.com/nicpaesk/killer-game/internal/storage/memory"
	redisstorage "github.com/nicpaesk/killer-game/internal/storage/redis"
	"github.com/nicpaesk/killer-game/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Engine          *assignment.Engine
	GameController  *game.Controller
	IdentityService *identity.Service
	SummaryService  *summary.Service

	// Real-time delivery
	Registry   *realtime.Registry
	Dispatcher *realtime.Dispatcher
	WSHandler  *realtime.Handler

	// Publisher receives the summary of every finished game
	Publisher results.Publisher
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// AMQP enables result publishing to a broker when its URL is set
	AMQP results.AMQPConfig

	GameConfig     game.Config
	IdentityConfig identity.Config
	RealtimeConfig realtime.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher results.Publisher = results.NewLogPublisher(logger)
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := results.NewAMQPPublisher(cfg.AMQP, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		publisher = amqpPublisher
	}

	return newWithDependencies(store, clock.New(), random.New(), publisher, withDefaults(cfg), logger), nil
}

func openStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sqlite'", storageType)
	}
}

func withDefaults(cfg Config) Config {
	if cfg.IdentityConfig.BcryptCost == 0 {
		cfg.IdentityConfig = identity.DefaultConfig()
	}
	if cfg.RealtimeConfig.SendBufferSize == 0 {
		cfg.RealtimeConfig = realtime.DefaultConfig()
	}
	if cfg.GameConfig.MaxCodeAttempts == 0 {
		cfg.GameConfig = game.DefaultConfig()
	}
	return cfg
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	publisher results.Publisher,
	cfg Config,
	logger *slog.Logger,
) *App {
	engine := assignment.New(rnd)
	gameController := game.NewController(store, engine, clk, rnd, logger, cfg.GameConfig)
	identityService := identity.New(store, clk, logger, cfg.IdentityConfig)
	summaryService := summary.New(store)

	registry := realtime.NewRegistry(logger)
	dispatcher := realtime.NewDispatcher(registry, gameController, identityService, summaryService, publisher, clk, logger)
	wsHandler := realtime.NewHandler(registry, dispatcher, cfg.RealtimeConfig, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		Engine:          engine,
		GameController:  gameController,
		IdentityService: identityService,
		SummaryService:  summaryService,
		Registry:        registry,
		Dispatcher:      dispatcher,
		WSHandler:       wsHandler,
		Publisher:       publisher,
	}
}

// Close releases the publisher and the storage backend
func (a *App) Close() error {
	return errors.Join(a.Publisher.Close(), a.Storage.Close())
}
