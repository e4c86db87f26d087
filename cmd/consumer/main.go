package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/growth/internal/config"
	"example.com/growth/internal/consumer"
	"example.com/growth/internal/engine"
	"example.com/growth/internal/inference"
	persistence "example.com/growth/internal/persistence/postgres"
	"example.com/growth/internal/prediction"
	"example.com/growth/internal/routine"
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
	gateway := inference.FromConfig(cfg.Inference)
	service := engine.NewService(repo, repo,
		prediction.NewEngine(gateway),
		routine.NewEngine(gateway),
		engine.WithLocker(repo),
	)
	handler := consumer.NewTriggerHandler(service, nil)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		metricsLogger := log.New(log.Writer(), "[consumer-metrics] ", log.LstdFlags)
		if err := httptransport.Run(ctx, httptransport.NewMetricsServer(cfg.MetricsAddress), 10*time.Second, metricsLogger); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		proc := consumer.NewProcessor(reader, handler)

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			log.Printf("consumer started (topic=%s, group=%s)", topic, cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consumer stopped with error (topic=%s): %v", topic, err)
			}
		}(topic, reader)
	}

	<-ctx.Done()
	log.Println("consumer shutdown requested")
	wg.Wait()
}
