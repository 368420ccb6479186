/*
escalator.go - Stale-alert severity escalation

PURPOSE:
  Unread alerts that nobody acted on get louder over time. The escalator
  scans unread alerts past an age threshold, bumps their severity one
  step, and notifies active Admin/Manager users through a pluggable
  notification hook.

DESIGN:
  - Runs as phase 3 of every scheduler cycle, and can also run on its
    own schedule
  - Severity is monotonic: Low -> Medium -> High -> Critical, and
    Critical stays Critical (but still re-notifies on its own, shorter
    threshold)
  - Notification delivery is a hook; the default just logs

THRESHOLDS:
  StaleAfter:     how long an unread alert sits before escalating (24h)
  CriticalRenotify: re-notification interval for already-Critical (6h)

SEE ALSO:
  - alert.go: Severity ladder
  - scheduler/: Invokes Sweep as phase 3
*/
package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/replenish-engine/catalog"
)

// =============================================================================
// NOTIFIER - Pluggable delivery hook
// =============================================================================

// Notifier delivers an escalation notice. Implementations may send
// email, chat messages, webhooks - the engine only defines the hook.
type Notifier interface {
	Notify(ctx context.Context, a Alert, recipients []catalog.User) error
}

// LogNotifier is the default Notifier: it logs and delivers nothing.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, a Alert, recipients []catalog.User) error {
	log.Printf("[Escalator] Notify %d recipient(s): [%s] %s (severity=%s)",
		len(recipients), a.Type, a.Title, a.Severity)
	return nil
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, a Alert, recipients []catalog.User) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert, recipients []catalog.User) error {
	return f(ctx, a, recipients)
}

// =============================================================================
// ESCALATOR
// =============================================================================

type Escalator struct {
	Alerts   Store
	Users    catalog.UserStore
	Notifier Notifier

	// StaleAfter is the age at which an unread alert escalates.
	StaleAfter time.Duration

	// CriticalRenotify is the shorter interval at which already-Critical
	// unread alerts re-notify (severity unchanged).
	CriticalRenotify time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewEscalator(alerts Store, users catalog.UserStore, notifier Notifier) *Escalator {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Escalator{
		Alerts:           alerts,
		Users:            users,
		Notifier:         notifier,
		StaleAfter:       24 * time.Hour,
		CriticalRenotify: 6 * time.Hour,
	}
}

func (e *Escalator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// SweepStats summarizes one escalation pass.
type SweepStats struct {
	Scanned    int
	Escalated  int
	Renotified int
	Errors     []string
}

// Sweep escalates stale unread alerts. Per-alert failures are recorded
// and do not abort the pass.
func (e *Escalator) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	unread, err := e.Alerts.ListUnread(ctx)
	if err != nil {
		return stats, fmt.Errorf("list unread alerts: %w", err)
	}

	recipients, err := e.Users.ListActiveApprovers(ctx)
	if err != nil {
		return stats, fmt.Errorf("list alert recipients: %w", err)
	}

	now := e.now()
	for _, a := range unread {
		stats.Scanned++

		// Age from the last escalation, or creation if never escalated.
		since := a.CreatedAt
		if a.EscalatedAt != nil {
			since = *a.EscalatedAt
		}
		age := now.Sub(since)

		if a.Severity == SeverityCritical {
			if age < e.CriticalRenotify {
				continue
			}
			// Critical stays Critical; the bump only refreshes EscalatedAt
			// so the next re-notification waits the full interval again.
			if err := e.Alerts.EscalateAlert(ctx, a.ID, SeverityCritical, now); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("alert %s: %v", a.ID, err))
				continue
			}
			a.EscalatedAt = &now
			if err := e.Notifier.Notify(ctx, a, recipients); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("alert %s notify: %v", a.ID, err))
			}
			stats.Renotified++
			continue
		}

		if age < e.StaleAfter {
			continue
		}

		next := a.Severity.Escalated()
		if err := e.Alerts.EscalateAlert(ctx, a.ID, next, now); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("alert %s: %v", a.ID, err))
			continue
		}
		a.Severity = next
		a.EscalatedAt = &now
		if err := e.Notifier.Notify(ctx, a, recipients); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("alert %s notify: %v", a.ID, err))
		}
		stats.Escalated++
	}

	if stats.Escalated > 0 || stats.Renotified > 0 {
		log.Printf("[Escalator] Completed: %d scanned, %d escalated, %d re-notified",
			stats.Scanned, stats.Escalated, stats.Renotified)
	}
	return stats, nil
}
