package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damacus/dataset-explorer/internal/config"
	"github.com/damacus/dataset-explorer/internal/explorer"
	"github.com/damacus/dataset-explorer/internal/handlers"
	"github.com/damacus/dataset-explorer/internal/logging"
	customMiddleware "github.com/damacus/dataset-explorer/internal/middleware"
	"github.com/damacus/dataset-explorer/internal/renderer"
	"github.com/damacus/dataset-explorer/internal/services"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	addr       string
	backend    string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "dataset-explorer",
	Short: "Browse the files of a Domino dataset from the browser",
	Long: `dataset-explorer serves a single page that lists the files of a dataset
snapshot. It is meant to run behind the authenticating proxy that forwards the
caller's bearer token in the Authorization header.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	bindFlags(rootCmd)
}

func bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides EXPLORER_ADDR)")
	cmd.Flags().StringVar(&backend, "backend", "", "Dataset backend: api or objectstore (overrides DATASETS_BACKEND)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Log format: json or console")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers flags over the file and environment settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = addr
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func run(cmd *cobra.Command) error {
	// Load .env file
	dotenvErr := godotenv.Load()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer func() { _ = logger.Sync() }()

	if dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		logger.Warn("failed to load .env file", zap.Error(dotenvErr))
	}
	if len(cfg.SessionKey) != 32 {
		logger.Warn("session key is not 32 bytes, using an ephemeral key; form state will not survive restarts")
	}

	e := newServer(newDatasetFactory(cfg), services.NewStateService(cfg.SessionKey), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Addr),
			zap.String("backend", cfg.Backend))
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	logger.Info("server stopped")
	return nil
}

func newDatasetFactory(cfg *config.Config) services.DatasetClientFactory {
	if cfg.Backend == config.BackendObjectStore {
		return &services.ObjectStoreFactory{
			Endpoint:    cfg.ObjectStore.Endpoint,
			Bucket:      cfg.ObjectStore.Bucket,
			STSEndpoint: cfg.ObjectStore.STSEndpoint,
		}
	}
	return &services.APIClientFactory{Host: cfg.API.Host}
}

func newServer(factory services.DatasetClientFactory, states *services.StateService, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	explorerHandler := handlers.NewExplorerHandler(explorer.New(factory, logger), states, logger)

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(customMiddleware.SecurityHeaders())
	e.Use(customMiddleware.CSRF())
	e.Use(customMiddleware.BearerToken())
	e.Use(customMiddleware.FormState(states))

	// Template Renderer
	e.Renderer = renderer.New()

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/", explorerHandler.Index)
	e.POST("/explore", explorerHandler.Explore)
	e.GET("/datasets/files.csv", explorerHandler.ExportCSV)

	return e
}
