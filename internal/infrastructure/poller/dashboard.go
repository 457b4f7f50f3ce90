// Package poller keeps the role dashboards' order summary fresh by re-reading
// orders on a fixed interval while a user is signed in.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/api/metrics"
	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
)

const DefaultInterval = 2 * time.Minute

// Dashboard owns the latest DashboardStats snapshot.
type Dashboard struct {
	source   ports.OrderSource
	authed   func() bool
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	stats   *domain.DashboardStats
	lastErr error
	stopped bool
	gen     uint64 // bumped by Reset; refreshes started earlier are dropped

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDashboard builds a poller over source. authed gates every refresh so no
// request leaves the process for an anonymous user.
func NewDashboard(source ports.OrderSource, authed func() bool, interval time.Duration, log zerolog.Logger) *Dashboard {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Dashboard{
		source:   source,
		authed:   authed,
		interval: interval,
		log:      log.With().Str("component", "dashboard_poller").Logger(),
		now:      time.Now,
	}
}

// Start launches the refresh loop. It stops when ctx is cancelled or Stop is
// called.
func (d *Dashboard) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.done = make(chan struct{})
	d.stopped = false
	done := d.done
	d.mu.Unlock()

	go d.run(ctx, done)
}

func (d *Dashboard) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	_ = d.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = d.Refresh(ctx)
		}
	}
}

// Stop ends the loop and waits for it to exit. Later refreshes are ignored.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	d.stopped = true
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Refresh fetches orders once and replaces the snapshot.
func (d *Dashboard) Refresh(ctx context.Context) error {
	if !d.authed() {
		metrics.DashboardRefreshTotal.WithLabelValues("skipped").Inc()
		return domain.ErrNoSession
	}

	d.mu.RLock()
	gen := d.gen
	d.mu.RUnlock()

	orders, err := d.source.ListOrders(ctx, nil)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.gen != gen {
		metrics.DashboardRefreshTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if err != nil {
		d.lastErr = err
		metrics.DashboardRefreshTotal.WithLabelValues("error").Inc()
		d.log.Warn().Err(err).Msg("dashboard refresh failed")
		return err
	}
	stats := domain.Aggregate(orders, d.now())
	d.stats = &stats
	d.lastErr = nil
	metrics.DashboardRefreshTotal.WithLabelValues("ok").Inc()
	return nil
}

// Snapshot returns the latest stats, if any, and the last refresh error.
func (d *Dashboard) Snapshot() (*domain.DashboardStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stats == nil {
		return nil, d.lastErr
	}
	s := *d.stats
	s.ByStatus = make(map[string]int, len(d.stats.ByStatus))
	for k, v := range d.stats.ByStatus {
		s.ByStatus[k] = v
	}
	return &s, d.lastErr
}

// Reset drops the snapshot; called when the session ends so the next user
// never sees the previous one's numbers. A refresh still in flight is
// discarded when it returns.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	d.gen++
	d.stats = nil
	d.lastErr = nil
	d.mu.Unlock()
}
