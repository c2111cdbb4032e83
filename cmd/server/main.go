package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nicpaesk/killer-game/internal/api"
	"github.com/nicpaesk/killer-game/internal/config"
	"github.com/nicpaesk/killer-game/internal/factory"
	"github.com/nicpaesk/killer-game/internal/results"
	"github.com/nicpaesk/killer-game/internal/services/identity"
	redisstorage "github.com/nicpaesk/killer-game/internal/storage/redis"
)

const releaseVersion = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCmd(stdout io.Writer) *cobra.Command {
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:     "killer-server",
		Short:   "Runs the killer party game server",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ApplyEnv(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stdout)
		},
	}

	config.AddFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("killer-server v{{.Version}}\n")
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	factoryCfg := factory.Config{
		Logger:         logger,
		StorageType:    cfg.Storage,
		SQLitePath:     cfg.SQLitePath,
		IdentityConfig: identity.Config{BcryptCost: cfg.BcryptCost},
		AMQP:           results.AMQPConfig{URL: cfg.AMQPURL, Queue: cfg.AMQPQueue},
	}
	if cfg.Storage == config.StorageRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	// Create application factory
	app, err := factory.New(ctx, factoryCfg)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()
	logger.Info("storage ready", slog.String("storage", cfg.Storage))

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		BaseURL:        cfg.BaseURL,
		Storage:        app.Storage,
		GameController: app.GameController,
		SummaryService: app.SummaryService,
		Registry:       app.Registry,
		WSHandler:      app.WSHandler,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Bind
	serverConfig.Port = cfg.Port
	serverConfig.ShutdownTimeout = cfg.ShutdownTimeout
	server := api.NewServer(router, serverConfig, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
