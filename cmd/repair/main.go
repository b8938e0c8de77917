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

	"example.com/trailsync/internal/config"
	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/observability"
	"example.com/trailsync/internal/outbox"
	"example.com/trailsync/internal/registry"
	"example.com/trailsync/internal/repair"
)

const dlqBatchSize = 50

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

	repairer := repair.New(registries)
	dlqManager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("repair metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	repairTicker := time.NewTicker(cfg.RepairInterval)
	defer repairTicker.Stop()
	dlqTicker := time.NewTicker(cfg.DLQPollInterval)
	defer dlqTicker.Stop()

	log.Printf("repair daemon started (repair=%s, dlq=%s)", cfg.RepairInterval, cfg.DLQPollInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	runRepair(ctx, repairer)

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-stop:
			log.Println("repair daemon received shutdown signal")
			cancel()
			running = false
		case <-repairTicker.C:
			runRepair(ctx, repairer)
		case <-dlqTicker.C:
			retryDLQ(ctx, dlqManager)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}

func runRepair(ctx context.Context, repairer *repair.Repairer) {
	report, err := repairer.RunOnce(ctx)
	if err != nil {
		log.Printf("repair run error: %v", err)
		return
	}
	observability.RecordRepairRun(time.Now())
	if report.Clean() {
		log.Printf("repair run clean (%d category rows scanned)", report.Scanned)
		return
	}
	log.Printf("repair run: %d scanned, %d stale, %d duplicates, %d misplaced, %d refreshed, %d placed, %d unclassified, %d registries skipped",
		report.Scanned, report.StaleRemoved, report.DuplicatesRemoved, report.MisplacedRemoved,
		report.Refreshed, report.Placed, report.Unclassified, report.RegistriesSkipped)
}

func retryDLQ(ctx context.Context, manager *outbox.DLQManager) {
	requeued, err := manager.RunOnce(ctx, dlqBatchSize)
	if err != nil {
		log.Printf("dlq retry error: %v", err)
	}
	if requeued > 0 {
		log.Printf("dlq retry re-queued %d events", requeued)
	}
}

func buildRegistries(pool *pgxpool.Pool, cfg config.Config) (*registry.Set, error) {
	categories := make(map[domain.Difficulty]registry.Store, len(cfg.RegistryTables))
	for tier, table := range cfg.RegistryTables {
		categories[tier] = registry.NewPostgresStore(pool, table, table)
	}
	master := registry.NewPostgresStore(pool, cfg.MasterTable, cfg.MasterTable)
	return registry.NewSet(master, categories)
}
