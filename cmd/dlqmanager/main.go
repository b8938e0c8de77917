// Standalone DLQ retry manager. The repair daemon runs the same retry loop
// on its own schedule; this binary exists for deployments that want DLQ
// draining isolated from the registry audit, or for manually working through
// a backlog with a tighter poll interval.
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
	"example.com/trailsync/internal/outbox"
)

const batchSize = 100

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("dlq manager metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	drain := func() {
		requeued, err := manager.RunOnce(ctx, batchSize)
		if err != nil {
			log.Printf("dlq drain error: %v", err)
		}
		if requeued > 0 {
			log.Printf("re-queued %d dlq events", requeued)
		}
	}

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("dlq manager started (interval=%s, maxRetries=%d)", cfg.DLQPollInterval, cfg.DLQMaxRetries)

	// First drain immediately; a restart should not wait out a poll
	// interval with a backlog pending.
	drain()

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-stop:
			log.Println("dlq manager received shutdown signal")
			cancel()
			running = false
		case <-ticker.C:
			drain()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
