/*
scheduler.go - Automated renewal reminder scheduler

PURPOSE:
  Periodically evaluates every contract's renewal status and records a
  reminder for each contract whose renewal is due (urgency low, medium or
  high). Reminders are upserted per contract and target year, so a contract
  produces one record per renewal that is escalated as the date approaches.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Skips contracts without a renewal anchor or already adjusted this cycle
  - Counts created/escalated reminders in Prometheus

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRenewalReminderScheduler(store, log, metrics)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - billing/renewal.go: Renewal status and urgency
  - handlers.go: GET /api/renewals (same evaluation, on demand)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/generic"
)

// RenewalReminderScheduler records reminders for due renewals.
type RenewalReminderScheduler struct {
	Store         billing.Store
	Log           *zap.SugaredLogger
	Metrics       *Metrics
	CheckInterval time.Duration
	Enabled       bool

	// Now is the wall clock; replaced in tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRenewalReminderScheduler creates a new scheduler.
func NewRenewalReminderScheduler(store billing.Store, log *zap.SugaredLogger, metrics *Metrics) *RenewalReminderScheduler {
	return &RenewalReminderScheduler{
		Store:         store,
		Log:           log,
		Metrics:       metrics,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (rs *RenewalReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info("renewal scheduler disabled, not starting")
		return
	}

	if rs.ticker != nil {
		return
	}

	// Each run gets its own stop channel so the scheduler can be restarted.
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Log.Infow("renewal scheduler started", "interval", rs.CheckInterval.String())
}

// Stop stops the scheduler.
func (rs *RenewalReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.stop = nil
		rs.Log.Info("renewal scheduler stopped")
	}
}

func (rs *RenewalReminderScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.CheckAndRecord(context.Background())

	for {
		select {
		case <-ticker.C:
			rs.CheckAndRecord(context.Background())
		case <-stop:
			return
		}
	}
}

// CheckResult summarizes one scheduler pass.
type CheckResult struct {
	Checked  int
	Due      int
	Recorded int
	Failed   int
}

// CheckAndRecord evaluates every contract once. Per-contract failures are
// logged and counted; they do not stop the pass.
func (rs *RenewalReminderScheduler) CheckAndRecord(ctx context.Context) CheckResult {
	now := rs.Now()
	asOf := generic.DateOf(now)

	var result CheckResult
	contracts, err := rs.Store.ListContracts(ctx)
	if err != nil {
		rs.Log.Errorw("listing contracts failed", "error", err)
		return result
	}

	for _, c := range contracts {
		result.Checked++
		recorded, due, err := rs.checkContract(ctx, c, asOf, now)
		if err != nil {
			result.Failed++
			rs.Log.Errorw("recording renewal reminder failed", "contract_id", c.ID, "error", err)
			continue
		}
		if due {
			result.Due++
		}
		if recorded {
			result.Recorded++
		}
	}

	if result.Due > 0 || result.Failed > 0 {
		rs.Log.Infow("renewal check completed",
			"as_of", asOf.String(),
			"checked", result.Checked,
			"due", result.Due,
			"recorded", result.Recorded,
			"failed", result.Failed,
		)
	}
	return result
}

func (rs *RenewalReminderScheduler) checkContract(ctx context.Context, c billing.Contract, asOf generic.Date, now time.Time) (recorded, due bool, err error) {
	history, err := rs.Store.ListAdjustments(ctx, c.ID)
	if err != nil {
		return false, false, err
	}
	status := billing.Renewal(c, history, asOf)
	if !status.HasAnchor || status.Satisfied || status.Urgency == billing.UrgencyNone {
		return false, false, nil
	}

	written, err := rs.Store.SaveReminder(ctx, billing.Reminder{
		ID:          generic.ReminderID(uuid.NewString()),
		ContractID:  c.ID,
		TargetYear:  status.NextDate.Year(),
		RenewalDate: status.NextDate,
		Urgency:     status.Urgency,
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		return false, true, err
	}
	if written {
		rs.Metrics.RemindersRecorded.WithLabelValues(status.Urgency.String()).Inc()
		rs.Log.Infow("renewal reminder recorded",
			"contract_id", c.ID,
			"renewal_date", status.NextDate.String(),
			"days_until", status.DaysUntil,
			"urgency", status.Urgency.String(),
		)
	}
	return written, true, nil
}
