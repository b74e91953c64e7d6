package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"marquee/internal/models"
)

// StatusRefreshLockKey is the lease shared by every replica running the
// refresh, so only one of them recalculates per interval.
const StatusRefreshLockKey = "lock:event-status-refresh"

var ErrLeaseHeld = errors.New("status refresh lease is held by another instance")

type Recalculator interface {
	RecalculateAll(ctx context.Context) (*models.RecalculationSummary, error)
}

// Locker is a best-effort distributed lease.
type Locker interface {
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, owner string) error
}

// StatusRefreshJob recomputes the hot and popular flags of all live events on
// a fixed interval.
type StatusRefreshJob struct {
	recalc   Recalculator
	locker   Locker
	interval time.Duration
	lease    time.Duration
	owner    string

	mu       sync.Mutex
	ticker   *time.Ticker
	done     chan bool
	stopOnce sync.Once
}

// NewStatusRefreshJob creates the job. A nil locker runs every pass locally.
// A successful pass keeps the lease until it expires just short of the next
// tick, so a fleet of replicas runs one pass per interval.
func NewStatusRefreshJob(recalc Recalculator, locker Locker, interval time.Duration) *StatusRefreshJob {
	return &StatusRefreshJob{
		recalc:   recalc,
		locker:   locker,
		interval: interval,
		lease:    leaseFor(interval),
		owner:    instanceID(),
		done:     make(chan bool),
	}
}

// leaseFor returns the lease TTL for an interval: the interval minus a tenth,
// capped at one minute, so the holder's own next tick finds it expired.
func leaseFor(interval time.Duration) time.Duration {
	margin := interval / 10
	if margin > time.Minute {
		margin = time.Minute
	}
	return interval - margin
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// Start runs a pass immediately and then once per interval until Stop.
func (j *StatusRefreshJob) Start(ctx context.Context) {
	slog.Info("Starting event status refresh job", "interval", j.interval, "lease", j.lease)

	j.ticker = time.NewTicker(j.interval)

	go j.run(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.run(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Event status refresh job stopped")
				return
			}
		}
	}()
}

func (j *StatusRefreshJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

func (j *StatusRefreshJob) run(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			slog.Debug("Skipping event status refresh", "reason", err)
			return
		}
		slog.Error("Event status refresh failed", "error", err)
	}
}

// RunOnce performs a single pass. Passes never overlap within the process.
// Across processes the lease decides: it is kept after a successful pass and
// released after a failed one so another replica can retry. An unreachable
// lease store does not block the pass since recalculation is idempotent.
func (j *StatusRefreshJob) RunOnce(ctx context.Context) (*models.RecalculationSummary, error) {
	if !j.mu.TryLock() {
		return nil, ErrLeaseHeld
	}
	defer j.mu.Unlock()

	leased := false
	if j.locker != nil {
		ok, err := j.locker.TryLock(ctx, StatusRefreshLockKey, j.owner, j.lease)
		switch {
		case err != nil:
			slog.Warn("Status refresh lease unavailable, running without it", "error", err)
		case !ok:
			return nil, ErrLeaseHeld
		default:
			leased = true
		}
	}

	summary, err := j.recalc.RecalculateAll(ctx)
	if err != nil && leased {
		if uerr := j.locker.Unlock(context.Background(), StatusRefreshLockKey, j.owner); uerr != nil {
			slog.Warn("Failed to release status refresh lease", "error", uerr)
		}
	}
	return summary, err
}
