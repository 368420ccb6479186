/*
scheduler.go - Automated replenishment scheduler

PURPOSE:
  Runs the replenishment cycle on a cron schedule: scan items against
  reorder rules, drain the reorder queue into requisitions, then sweep
  alerts for escalation and batches for expiry. Every run is recorded
  for audit and UI display.

DESIGN:
  - Cron-driven via robfig/cron, with a manual RunNow trigger
  - Single-flight: a run is skipped (manual) or not started (cron)
    while another run is in progress
  - A panicking run is recovered and recorded as failed
  - Shutdown waits for an in-flight run up to a bounded timeout

CONFIGURATION:
  - Schedule: cron expression for the replenishment cycle
  - AlertSchedule: cron expression for the alert/expiry sweep
  - Enabled: whether cron triggering is active
  - BatchSize: queue entries drained per run

USAGE:
  s := scheduler.New(cfg, engine, generator, escalator, expiry, runs)
  s.Start()
  // ... later
  s.Shutdown(10 * time.Second)

SEE ALSO:
  - run.go: Run records and the run store
  - reorder/decision.go: Phase 1 (scan)
  - reorder/requisition.go: Phase 2 (drain)
*/
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/batch"
	"github.com/warp/replenish-engine/reorder"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type Config struct {
	// Schedule is the cron expression for the replenishment cycle.
	Schedule string
	// AlertSchedule is the cron expression for the alert/expiry sweep.
	AlertSchedule string
	Enabled       bool
	BatchSize     int
	// Location resolves the cron expressions; nil means UTC.
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		Schedule:      "0 * * * *",  // hourly
		AlertSchedule: "30 * * * *", // hourly, offset from the main cycle
		Enabled:       true,
		BatchSize:     50,
	}
}

func (c Config) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

// Validate parses both cron expressions.
func (c Config) Validate() error {
	parser := cron.ParseStandard
	if _, err := parser(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}
	if _, err := parser(c.AlertSchedule); err != nil {
		return fmt.Errorf("invalid alert schedule %q: %w", c.AlertSchedule, err)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// =============================================================================
// SCHEDULER
// =============================================================================

type Scheduler struct {
	Engine    *reorder.DecisionEngine
	Generator *reorder.Generator
	Escalator *alert.Escalator
	Expiry    *batch.ExpiryChecker
	Runs      RunStore

	mu        sync.Mutex
	cfg       Config
	cron      *cron.Cron
	cycleID   cron.EntryID
	isRunning bool
	lastRun   *Run
	started   bool

	// wg tracks in-flight runs for Shutdown.
	wg sync.WaitGroup

	Now func() time.Time
}

func New(cfg Config, engine *reorder.DecisionEngine, generator *reorder.Generator, escalator *alert.Escalator, expiry *batch.ExpiryChecker, runs RunStore) *Scheduler {
	return &Scheduler{
		Engine:    engine,
		Generator: generator,
		Escalator: escalator,
		Expiry:    expiry,
		Runs:      runs,
		cfg:       cfg,
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Start registers the cron entries and begins triggering runs. A
// disabled scheduler starts nothing but still accepts RunNow. Calling
// Start on a started scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.cancelAbandonedRuns(context.Background())

	if !s.cfg.Enabled {
		s.started = true
		log.Println("[Scheduler] Disabled, cron not started (manual runs still accepted)")
		return nil
	}

	c := cron.New(cron.WithLocation(s.cfg.location()))
	cycleID, err := c.AddFunc(s.cfg.Schedule, func() { s.triggerCron(TriggerCron) })
	if err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	if _, err := c.AddFunc(s.cfg.AlertSchedule, s.runAlertSweep); err != nil {
		return fmt.Errorf("register alert schedule: %w", err)
	}
	c.Start()

	s.cron = c
	s.cycleID = cycleID
	s.started = true
	log.Printf("[Scheduler] Started: cycle %q, alert sweep %q, batch size %d",
		s.cfg.Schedule, s.cfg.AlertSchedule, s.cfg.BatchSize)
	return nil
}

// cancelAbandonedRuns closes out run rows left in running state by a
// previous process. Called with s.mu held, before any new run starts.
func (s *Scheduler) cancelAbandonedRuns(ctx context.Context) {
	stale, err := s.Runs.ListRuns(ctx, RunFilter{Status: RunRunning, Limit: 100})
	if err != nil {
		log.Printf("[Scheduler] Could not list abandoned runs: %v", err)
		return
	}
	for _, run := range stale {
		run.Status = RunCancelled
		run.Error = "abandoned: process stopped before the run finished"
		completed := s.now()
		run.CompletedAt = &completed
		if err := s.Runs.SaveRun(ctx, run); err != nil {
			log.Printf("[Scheduler] Could not cancel abandoned run %s: %v", run.ID, err)
			continue
		}
		log.Printf("[Scheduler] Cancelled abandoned run %s (started %s)", run.ID, run.StartedAt.Format(time.RFC3339))
	}
}

// Shutdown stops cron triggering and waits up to timeout for any
// in-flight run to finish.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	s.started = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[Scheduler] Stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %v with a run still in flight", timeout)
	}
}

// UpdateConfig validates the new config and restarts cron under it.
// An in-flight run keeps the batch size it started with.
func (s *Scheduler) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	s.cfg = cfg

	if !s.started || !cfg.Enabled {
		log.Printf("[Scheduler] Config updated: cycle %q, enabled=%v", cfg.Schedule, cfg.Enabled)
		return nil
	}

	c := cron.New(cron.WithLocation(cfg.location()))
	cycleID, err := c.AddFunc(cfg.Schedule, func() { s.triggerCron(TriggerCron) })
	if err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	if _, err := c.AddFunc(cfg.AlertSchedule, s.runAlertSweep); err != nil {
		return fmt.Errorf("register alert schedule: %w", err)
	}
	c.Start()
	s.cron = c
	s.cycleID = cycleID

	log.Printf("[Scheduler] Config updated and cron restarted: cycle %q", cfg.Schedule)
	return nil
}

// =============================================================================
// TRIGGERING
// =============================================================================

// RunNowResult tells a manual caller whether their run was accepted.
type RunNowResult struct {
	Accepted bool
	RunID    string
	Reason   string
}

// RunNow triggers an immediate replenishment cycle, fire and forget.
// A run already in progress yields a busy result and no run record.
func (s *Scheduler) RunNow() RunNowResult {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return RunNowResult{Accepted: false, Reason: "a run is already in progress"}
	}
	s.isRunning = true
	runID := uuid.New().String()
	batchSize := s.cfg.BatchSize
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(runID, TriggerManual, batchSize)

	return RunNowResult{Accepted: true, RunID: runID}
}

func (s *Scheduler) triggerCron(by TriggeredBy) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		log.Println("[Scheduler] Skipping cron trigger: run already in progress")
		return
	}
	s.isRunning = true
	runID := uuid.New().String()
	batchSize := s.cfg.BatchSize
	s.mu.Unlock()

	s.wg.Add(1)
	s.execute(runID, by, batchSize)
}

// =============================================================================
// RUN EXECUTION
// =============================================================================

func (s *Scheduler) execute(runID string, by TriggeredBy, batchSize int) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	started := s.now()

	run := Run{
		ID:          runID,
		TriggeredBy: by,
		Status:      RunRunning,
		StartedAt:   started,
	}
	if err := s.Runs.SaveRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Could not record run %s: %v", runID, err)
	}

	defer func() {
		if r := recover(); r != nil {
			run.Status = RunFailed
			run.Error = fmt.Sprintf("panic: %v", r)
			s.finishRun(ctx, &run)
			log.Printf("[Scheduler] Run %s panicked: %v", runID, r)
		}
	}()

	log.Printf("[Scheduler] Run %s started (%s)", runID, by)

	// Phase 1: scan
	scan, err := s.Engine.Scan(ctx)
	run.ItemsProcessed = scan.ItemsProcessed
	run.ItemsEligible = scan.ItemsEligible
	run.ItemErrors = append(run.ItemErrors, scan.Errors...)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		s.finishRun(ctx, &run)
		log.Printf("[Scheduler] Run %s failed during scan: %v", runID, err)
		return
	}

	// Phase 2: drain
	drain, err := s.Generator.Drain(ctx, batchSize)
	run.RequisitionsCreated = drain.Generated
	run.ItemErrors = append(run.ItemErrors, drain.Errors...)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		s.finishRun(ctx, &run)
		log.Printf("[Scheduler] Run %s failed during drain: %v", runID, err)
		return
	}

	// Phase 3: alert escalation and expiry, inline for manual visibility
	if sweep, err := s.Escalator.Sweep(ctx); err != nil {
		run.ItemErrors = append(run.ItemErrors, reorder.ItemError{Message: "escalation: " + err.Error()})
	} else {
		run.AlertsEscalated = sweep.Escalated
	}
	if stats, err := s.Expiry.Sweep(ctx); err != nil {
		run.ItemErrors = append(run.ItemErrors, reorder.ItemError{Message: "expiry: " + err.Error()})
	} else {
		run.BatchAlertsRaised = stats.Expiring + stats.Expired
	}

	if len(run.ItemErrors) > 0 {
		run.Status = RunPartial
	} else {
		run.Status = RunCompleted
	}
	s.finishRun(ctx, &run)

	log.Printf("[Scheduler] Run %s %s: %d processed, %d eligible, %d requisitions, %d error(s) in %v",
		runID, run.Status, run.ItemsProcessed, run.ItemsEligible,
		run.RequisitionsCreated, len(run.ItemErrors), run.Duration())
}

func (s *Scheduler) finishRun(ctx context.Context, run *Run) {
	completed := s.now()
	run.CompletedAt = &completed
	if err := s.Runs.SaveRun(ctx, *run); err != nil {
		log.Printf("[Scheduler] Could not update run %s: %v", run.ID, err)
	}
	s.mu.Lock()
	snapshot := *run
	s.lastRun = &snapshot
	s.mu.Unlock()
}

// runAlertSweep is the standalone alert/expiry cron entry. It runs even
// when a replenishment cycle is in flight; both sweeps are idempotent.
func (s *Scheduler) runAlertSweep() {
	ctx := context.Background()
	if _, err := s.Escalator.Sweep(ctx); err != nil {
		log.Printf("[Scheduler] Alert sweep: %v", err)
	}
	if _, err := s.Expiry.Sweep(ctx); err != nil {
		log.Printf("[Scheduler] Expiry sweep: %v", err)
	}
}

// =============================================================================
// STATUS
// =============================================================================

type Status struct {
	Enabled   bool
	Started   bool
	IsRunning bool
	Schedule  string
	BatchSize int
	NextRun   *time.Time
	LastRun   *Run
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Enabled:   s.cfg.Enabled,
		Started:   s.started,
		IsRunning: s.isRunning,
		Schedule:  s.cfg.Schedule,
		BatchSize: s.cfg.BatchSize,
		LastRun:   s.lastRun,
	}
	// Look the cycle entry up by ID: Entries() sorts by soonest
	// activation, which can be the alert sweep's fire time.
	if s.cron != nil {
		if entry := s.cron.Entry(s.cycleID); entry.Valid() {
			next := entry.Next
			st.NextRun = &next
		}
	}
	return st
}

// Config returns a copy of the active configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
