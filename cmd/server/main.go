// main.go - Application entry point
//
// PURPOSE:
//   Initializes and starts the Warp Replenishment Engine server.
//   Handles configuration, dependency injection, and graceful shutdown.
//
// STARTUP SEQUENCE:
//   1. Load .env (if present) and parse command-line flags
//   2. Initialize SQLite store (migrations run on open)
//   3. Wire the domain engines (balance, demand, decision, generator,
//      escalator, expiry) onto the store
//   4. Start the replenishment scheduler
//   5. Start HTTP server with graceful shutdown
//
// CONFIGURATION (flag, env fallback in parentheses):
//   -port       HTTP server port (PORT, default 8080)
//   -db         SQLite database path (DATABASE_PATH, default replenish.db)
//               Use ":memory:" for an in-memory database
//   -schedule   Cron expression for the replenishment cycle
//               (REPLENISH_SCHEDULE, default "0 * * * *")
//   -alert-schedule
//               Cron expression for the alert/expiry sweep
//               (ALERT_SCHEDULE, default "30 * * * *")
//   -batch      Queue entries drained per run (BATCH_SIZE, default 50)
//   -tz         Timezone for cron schedules (SCHEDULER_TZ, default UTC)
//   -enabled    Whether cron triggering starts active
//               (SCHEDULER_ENABLED, default true)
//
// GRACEFUL SHUTDOWN:
//   On SIGINT/SIGTERM:
//   1. Stop accepting new connections
//   2. Wait for active requests to complete (30s timeout)
//   3. Stop the scheduler, waiting for the in-flight run (30s timeout)
//   4. Close database connection
//   5. Exit
//
// EXAMPLES:
//   # Run with file database
//   ./server -db="./data/replenish.db"
//
//   # Run every 15 minutes in warehouse-local time
//   ./server -schedule="*/15 * * * *" -tz="America/Chicago"
//
// SEE ALSO:
//   - api/server.go: Router configuration
//   - scheduler/scheduler.go: Cycle orchestration
//   - store/sqlite/sqlite.go: Database implementation
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/api"
	"github.com/warp/replenish-engine/batch"
	"github.com/warp/replenish-engine/demand"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/reorder"
	"github.com/warp/replenish-engine/scheduler"
	"github.com/warp/replenish-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override env.
	_ = godotenv.Load()

	defaults := scheduler.DefaultConfig()
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "replenish.db"), "SQLite database path")
	schedule := flag.String("schedule", envStr("REPLENISH_SCHEDULE", defaults.Schedule), "cron expression for the replenishment cycle")
	alertSchedule := flag.String("alert-schedule", envStr("ALERT_SCHEDULE", defaults.AlertSchedule), "cron expression for the alert/expiry sweep")
	batchSize := flag.Int("batch", envInt("BATCH_SIZE", defaults.BatchSize), "queue entries drained per run")
	tz := flag.String("tz", envStr("SCHEDULER_TZ", "UTC"), "timezone for cron schedules")
	enabled := flag.Bool("enabled", envBool("SCHEDULER_ENABLED", true), "whether cron triggering starts active")
	flag.Parse()

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Domain engines, all reading through the one store.
	balance := ledger.NewBalanceCalculator(store)
	demandEngine := demand.NewEngine(store, store)
	decisionEngine := reorder.NewDecisionEngine(balance, demandEngine, store, store, store, store)
	generator := reorder.NewGenerator(store, store.Generator(), store, store, store)
	escalator := alert.NewEscalator(store, store, nil)
	expiry := batch.NewExpiryChecker(store, store)

	// Scheduler
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", *tz, err)
	}
	cfg := scheduler.Config{
		Schedule:      *schedule,
		AlertSchedule: *alertSchedule,
		Enabled:       *enabled,
		BatchSize:     *batchSize,
		Location:      loc,
	}
	sched := scheduler.New(cfg, decisionEngine, generator, escalator, expiry, store)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// HTTP
	handler := api.NewHandler(sched, store, store, store, balance, demandEngine)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}
	if err := sched.Shutdown(30 * time.Second); err != nil {
		log.Printf("Scheduler forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
