// Command apiserver serves the reconciliation API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/turtacn/NERRecon/internal/app"
	"github.com/turtacn/NERRecon/internal/config"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/NERRecon/internal/interfaces/http"
	"github.com/turtacn/NERRecon/internal/interfaces/http/handlers"
	"github.com/turtacn/NERRecon/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	port := flag.Int("port", 0, "HTTP port (overrides server.port)")
	cors := flag.Bool("cors", false, "enable permissive CORS headers")
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("env file: %w", err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	gin.SetMode(cfg.Server.Mode)

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger.Info("starting NERRecon API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
		logging.String("storage", cfg.Storage.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := infra.Service()
	if err != nil {
		return err
	}

	routerCfg := httpserver.RouterConfig{
		ReconcileHandler: handlers.NewReconcileHandler(svc),
		HealthHandler:    handlers.NewHealthHandler(version, healthCheckers(infra.Checks())...),
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      cfg.Server.MaxBodySize,
		Logger:           logger,
		Metrics:          infra.Metrics,
		MetricsPath:      cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = infra.Collector
	}
	if infra.Searcher != nil {
		routerCfg.EntityHandler = handlers.NewEntityHandler(infra.Searcher)
	}
	if *cors {
		c := middleware.DefaultCORSConfig()
		routerCfg.CORS = &c
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return srv.Shutdown(context.Background())
}

//Personal.AI order the ending
