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

	"example.com/trailsync/internal/api"
	"example.com/trailsync/internal/config"
	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/outbox"
	"example.com/trailsync/internal/reconciler"
	"example.com/trailsync/internal/registry"
	"example.com/trailsync/internal/repair"
	httptransport "example.com/trailsync/internal/transport/http"
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

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	schemaRegistry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, schemaRegistry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	go dispatcher.Start(ctx)

	relocator := reconciler.New(registries, cfg.MasterSheet,
		reconciler.WithEventRecorder(outbox.NewRecorder(pool)))
	repairer := repair.New(registries)

	handler := api.NewHandler(registries, relocator, repairer)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.HTTPAddress}, logger(mux))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("trailsync api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}

func buildRegistries(pool *pgxpool.Pool, cfg config.Config) (*registry.Set, error) {
	categories := make(map[domain.Difficulty]registry.Store, len(cfg.RegistryTables))
	for tier, table := range cfg.RegistryTables {
		categories[tier] = registry.NewPostgresStore(pool, table, table)
	}
	master := registry.NewPostgresStore(pool, cfg.MasterTable, cfg.MasterTable)
	return registry.NewSet(master, categories)
}
