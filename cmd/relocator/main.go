package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/trailsync/internal/audit"
	"example.com/trailsync/internal/config"
	"example.com/trailsync/internal/consumer"
	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/outbox"
	"example.com/trailsync/internal/reconciler"
	"example.com/trailsync/internal/registry"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	registries, err := buildRegistries(pool, cfg)
	if err != nil {
		log.Fatalf("failed to build registry set: %v", err)
	}

	relocator := reconciler.New(registries, cfg.MasterSheet,
		reconciler.WithEventRecorder(outbox.NewRecorder(pool)))
	handler := consumer.NewReconcileHandler(relocator, audit.NewRecorder(pool))

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	go func() {
		log.Printf("relocator metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.EditTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	proc := consumer.NewProcessor(reader, handler)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("relocator started (topic=%s, group=%s)", cfg.EditTopic, cfg.ConsumerGroupID)
		if err := proc.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("relocator stopped with error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("relocator shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	<-done
}

func buildRegistries(pool *pgxpool.Pool, cfg config.Config) (*registry.Set, error) {
	categories := make(map[domain.Difficulty]registry.Store, len(cfg.RegistryTables))
	for tier, table := range cfg.RegistryTables {
		categories[tier] = registry.NewPostgresStore(pool, table, table)
	}
	master := registry.NewPostgresStore(pool, cfg.MasterTable, cfg.MasterTable)
	return registry.NewSet(master, categories)
}
