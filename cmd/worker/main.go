// Command worker consumes reconcile requests from Kafka, runs them through
// the reconciliation service and publishes a result event per request.
// Failed messages are retried with backoff and then dead-lettered.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/turtacn/NERRecon/internal/app"
	"github.com/turtacn/NERRecon/internal/config"
	"github.com/turtacn/NERRecon/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/NERRecon/internal/interfaces/http"
	"github.com/turtacn/NERRecon/internal/interfaces/http/handlers"
	"github.com/turtacn/NERRecon/internal/interfaces/worker"
)

const (
	defaultHealthPort = 8081
	maxRetryBackoff   = 30 * time.Second
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the /healthz, /readyz and metrics listener")
	workers := flag.Int("workers", 0, "per-run document parallelism (overrides reconcile.workers)")
	ensureTopics := flag.Bool("ensure-topics", false, "create the request, result and dead letter topics on startup")
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
	if *workers > 0 {
		cfg.Reconcile.Workers = *workers
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka.enabled is false; nothing to consume")
	}
	gin.SetMode(cfg.Server.Mode)

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	kc := cfg.Kafka
	logger.Info("starting NERRecon worker",
		logging.String("version", version),
		logging.Strings("brokers", kc.Brokers),
		logging.String("topic", kc.RequestTopic),
		logging.String("group", kc.GroupID),
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

	if *ensureTopics {
		tm, err := kafka.NewTopicManager(kc.Brokers, logger)
		if err != nil {
			return err
		}
		err = tm.EnsureTopics(ctx, kafka.DefaultTopics(kc.RequestTopic, kc.ResultTopic, kc.DLQTopic))
		_ = tm.Close()
		if err != nil {
			return err
		}
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		BatchTimeout: kc.BatchTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         kc.Brokers,
		GroupID:         kc.GroupID,
		Topics:          []string{kc.RequestTopic},
		AutoOffsetReset: kc.StartOffset,
		CommitTimeout:   kc.CommitTimeout,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      kc.MaxRetries,
			RetryBackoff:    kc.RetryBackoff,
			MaxRetryBackoff: maxRetryBackoff,
			DeadLetterTopic: kc.DLQTopic,
		},
	}, logger)
	if err != nil {
		return err
	}

	handler := worker.NewHandler(svc, producer, worker.HandlerConfig{
		ResultTopic: kc.ResultTopic,
		Timeout:     cfg.Reconcile.Timeout,
	}, infra.Metrics, logger)
	consumer.Subscribe(kc.RequestTopic, handler.Handle)

	// Probes and metrics.
	checks := make([]handlers.HealthChecker, 0)
	for _, c := range infra.Checks() {
		checks = append(checks, handlers.CheckFunc{Component: c.Name, Fn: c.Fn})
	}
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, checks...),
		Logger:        logger,
		MetricsPath:   cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = infra.Collector
	}
	healthCfg := cfg.Server
	healthCfg.Port = *healthPort
	healthSrv := httpserver.NewServer(healthCfg, httpserver.NewRouter(routerCfg), logger)
	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("received shutdown signal, draining in-flight request")

	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close failed", logging.Err(err))
	}
	processed, failed, deadLettered := consumer.Stats()
	if err := healthSrv.Shutdown(context.Background()); err != nil {
		logger.Warn("health server shutdown failed", logging.Err(err))
	}
	logger.Info("NERRecon worker stopped",
		logging.Int64("processed", processed),
		logging.Int64("failed", failed),
		logging.Int64("dead_lettered", deadLettered),
	)
	return nil
}

//Personal.AI order the ending
