package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/growth/internal/api"
	"example.com/growth/internal/auth"
	"example.com/growth/internal/config"
	"example.com/growth/internal/engine"
	"example.com/growth/internal/inference"
	"example.com/growth/internal/outbox"
	persistence "example.com/growth/internal/persistence/postgres"
	"example.com/growth/internal/prediction"
	"example.com/growth/internal/routine"
	"example.com/growth/internal/tracking"
	httptransport "example.com/growth/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := persistence.NewPool(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	writer := outbox.NewKafkaWriter(cfg.KafkaBrokers)
	defer writer.Close()

	registry := outbox.NewSchemaRegistry(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(outbox.NewPGStore(pool), writer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	gateway := inference.FromConfig(cfg.Inference)
	if !cfg.Inference.Enabled() {
		log.Printf("OPENAI_API_KEY not set; every generation uses the deterministic fallback")
	}

	service := engine.NewService(repo, repo,
		prediction.NewEngine(gateway),
		routine.NewEngine(gateway),
		engine.WithLocker(repo),
	)
	handler := api.NewHandler(service, tracking.NewService(repo, repo))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	logger := log.New(log.Writer(), "[api] ", log.LstdFlags)

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, httptransport.RequestLogger(logger, authMiddleware.Wrap(mux)))

	if err := httptransport.Run(ctx, server, serverCfg.ShutdownTimeout, logger); err != nil {
		log.Printf("server error: %v", err)
	}
	cancel()
	dispatcher.Wait()
}
