package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RecoveryBatchSize caps how many stuck bookings one sweep re-drives.
const RecoveryBatchSize = 100

type Recoverer interface {
	RecoverPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// TicketRecoveryJob finishes bookings whose ticket phase did not complete.
type TicketRecoveryJob struct {
	recoverer Recoverer
	interval  time.Duration
	after     time.Duration
	ticker    *time.Ticker
	done      chan bool
	stopOnce  sync.Once
}

// NewTicketRecoveryJob creates the sweep. Bookings younger than after are
// left alone, since their request may still be issuing.
func NewTicketRecoveryJob(recoverer Recoverer, interval, after time.Duration) *TicketRecoveryJob {
	return &TicketRecoveryJob{
		recoverer: recoverer,
		interval:  interval,
		after:     after,
		done:      make(chan bool),
	}
}

func (j *TicketRecoveryJob) Start(ctx context.Context) {
	slog.Info("Starting ticket recovery job", "check_interval", j.interval, "after", j.after)

	j.ticker = time.NewTicker(j.interval)

	// Run initial sweep immediately
	go j.Sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				j.Sweep(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Ticket recovery job stopped")
				return
			}
		}
	}()
}

func (j *TicketRecoveryJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

// Sweep re-drives one batch of stuck bookings and returns how many were
// finished.
func (j *TicketRecoveryJob) Sweep(ctx context.Context) int {
	n, err := j.recoverer.RecoverPending(ctx, j.after, RecoveryBatchSize)
	if err != nil {
		slog.Error("Ticket recovery sweep failed", "error", err, "recovered", n)
		return n
	}
	if n > 0 {
		slog.Info("Recovered bookings with pending tickets", "count", n)
	} else {
		slog.Debug("No bookings with pending tickets")
	}
	return n
}
