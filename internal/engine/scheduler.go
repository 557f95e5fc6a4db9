package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fizic37/delcampe-ebay/internal/ebay"
	"github.com/fizic37/delcampe-ebay/internal/notify"
)

// Scheduler keeps every connected account's tokens alive on an interval
// and reports accounts whose refresh fails.
type Scheduler struct {
	cron     *cron.Cron
	engine   *Engine
	notifier notify.Notifier
	log      *slog.Logger
	timeout  time.Duration

	keepaliveEntryID cron.EntryID

	// alerted holds the accounts already reported, so a broken account is
	// announced once rather than on every run.
	mu      sync.Mutex
	alerted map[string]bool
}

// NewScheduler creates a Scheduler that runs RefreshAll every
// refreshInterval and sends failures to n.
func NewScheduler(
	eng *Engine,
	refreshInterval time.Duration,
	n notify.Notifier,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	s := &Scheduler{
		cron:     c,
		engine:   eng,
		notifier: n,
		log:      log,
		timeout:  refreshInterval,
		alerted:  make(map[string]bool),
	}

	id, err := c.AddFunc("@every "+refreshInterval.String(), s.runKeepalive)
	if err != nil {
		return nil, err
	}
	s.keepaliveEntryID = id

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// NextKeepalive returns when the next keep-alive run is due, or the zero
// time before the scheduler is started.
func (s *Scheduler) NextKeepalive() time.Time {
	return s.cron.Entry(s.keepaliveEntryID).Next
}

func (s *Scheduler) runKeepalive() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Debug("scheduled keep-alive starting")
	err := s.engine.RefreshAll(ctx)
	if err != nil {
		s.log.Error("scheduled keep-alive failed", "error", err)
	}
	if ctx.Err() != nil {
		return
	}
	s.notify(ctx, RefreshErrors(err))
}

// notify reports newly failing accounts and forgets recovered ones.
func (s *Scheduler) notify(ctx context.Context, failures []*RefreshError) {
	now := s.engine.nowFunc()
	failing := make(map[string]bool, len(failures))
	var alerts []notify.AccountAlert

	s.mu.Lock()
	for _, f := range failures {
		key := f.Account.Key()
		failing[key] = true
		if s.alerted[key] {
			continue
		}
		s.alerted[key] = true
		alerts = append(alerts, notify.AccountAlert{
			AccountKey:        key,
			Username:          f.Account.Username,
			Environment:       f.Account.Environment,
			Reason:            f.Err.Error(),
			ReconnectRequired: ebay.NeedsReconnect(f.Err),
			TokenExpiry:       f.Account.TokenExpiry,
			FailedAt:          now,
		})
	}
	for key := range s.alerted {
		if !failing[key] {
			delete(s.alerted, key)
		}
	}
	s.mu.Unlock()

	if len(alerts) == 0 || s.notifier == nil {
		return
	}

	var err error
	if len(alerts) == 1 {
		err = s.notifier.SendAlert(ctx, &alerts[0])
	} else {
		err = s.notifier.SendBatchAlert(ctx, alerts)
	}
	if err != nil {
		s.log.Warn("sending keep-alive notification", "accounts", len(alerts), "error", err)
		// Retry on the next run.
		s.mu.Lock()
		for _, a := range alerts {
			delete(s.alerted, a.AccountKey)
		}
		s.mu.Unlock()
	}
}
