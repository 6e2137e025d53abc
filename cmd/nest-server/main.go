package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "nest/cmd/nest-server/docs"
	"nest/internal/config"
	"nest/internal/constants"
	"nest/internal/logger"
	"nest/pkg/logging"
)

var (
	configFile string
)

// @title           Request Nest API
// @version         0.1.0
// @description     Self-hosted webhook inbox: capture any HTTP request sent to a bin and inspect it later.

// @license.name  MIT

// @host      localhost:8000
// @BasePath  /

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:     "nest-server",
		Short:   "Self-hosted webhook inbox",
		Long:    "nest-server captures HTTP requests sent to bins and serves an admin API to inspect them",
		Version: constants.Version,
		RunE:    serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, env CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads configuration and builds the logger shared by all
// commands.
func loadRuntime() (*config.Config, logger.Logger, error) {
	early := logging.Early()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		early.Errorw("Failed to load config", "error", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		early.Errorw("Failed to init logger", "error", err)
		return nil, nil, err
	}
	if sl, ok := log.(*logger.SugaredLogger); ok {
		sl.SetServiceName(constants.ServiceName)
	}

	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ingest and admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := config.ValidateServe(cfg); err != nil {
				log.Errorw("Invalid configuration", "error", err)
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting nest server", "version", constants.Version)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				_ = app.Shutdown(ctx)
				return fmt.Errorf("initialize: %w", err)
			}

			runErr := app.Run(ctx)
			if runErr != nil {
				log.ErrorwCtx(ctx, "Application error", "error", runErr)
			}

			if err := app.Shutdown(ctx); err != nil {
				log.ErrorwCtx(ctx, "Shutdown error", "error", err)
				if runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}
}
