package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/core/domain"
)

type stubOrders struct {
	calls  int32
	orders []domain.Order
	err    error
	gate   chan struct{}
}

func (s *stubOrders) ListOrders(context.Context, map[string]string) ([]domain.Order, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.gate != nil {
		<-s.gate
	}
	return s.orders, s.err
}

func always(v bool) func() bool { return func() bool { return v } }

func TestRefresh_Aggregates(t *testing.T) {
	src := &stubOrders{orders: []domain.Order{
		{ID: "1", Status: "pending", TotalAmount: 10},
		{ID: "2", Status: "pending", TotalAmount: 5.5},
		{ID: "3", Status: "delivered", TotalAmount: 20},
	}}
	d := NewDashboard(src, always(true), time.Hour, zerolog.Nop())

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	s, err := d.Snapshot()
	if err != nil || s == nil {
		t.Fatalf("expected snapshot, got %v, %v", s, err)
	}
	if s.TotalOrders != 3 || s.ByStatus["pending"] != 2 || s.Revenue != 35.5 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestRefresh_SkippedWhenAnonymous(t *testing.T) {
	src := &stubOrders{}
	d := NewDashboard(src, always(false), time.Hour, zerolog.Nop())

	if err := d.Refresh(context.Background()); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("anonymous refresh must not call the backend")
	}
}

func TestRefresh_ErrorKeepsPreviousSnapshot(t *testing.T) {
	src := &stubOrders{orders: []domain.Order{{ID: "1", Status: "pending"}}}
	d := NewDashboard(src, always(true), time.Hour, zerolog.Nop())
	_ = d.Refresh(context.Background())

	src.err = &domain.APIError{Kind: domain.KindNetwork}
	if err := d.Refresh(context.Background()); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	s, err := d.Snapshot()
	if s == nil || s.TotalOrders != 1 || !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected previous snapshot with last error, got %+v, %v", s, err)
	}
}

func TestStart_RefreshesOnInterval(t *testing.T) {
	src := &stubOrders{}
	d := NewDashboard(src, always(true), 10*time.Millisecond, zerolog.Nop())
	d.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&src.calls) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated refreshes, got %d", atomic.LoadInt32(&src.calls))
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()

	n := atomic.LoadInt32(&src.calls)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&src.calls) != n {
		t.Fatalf("refreshes continued after Stop")
	}
}

func TestStop_InFlightTickDoesNotUpdate(t *testing.T) {
	src := &stubOrders{orders: []domain.Order{{ID: "1"}}, gate: make(chan struct{})}
	d := NewDashboard(src, always(true), time.Hour, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.Refresh(context.Background())
	}()
	for atomic.LoadInt32(&src.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	d.Stop()
	close(src.gate)
	wg.Wait()

	if s, _ := d.Snapshot(); s != nil {
		t.Fatalf("a refresh finishing after Stop must not publish, got %+v", s)
	}
}

func TestReset(t *testing.T) {
	src := &stubOrders{orders: []domain.Order{{ID: "1"}}}
	d := NewDashboard(src, always(true), time.Hour, zerolog.Nop())
	_ = d.Refresh(context.Background())
	d.Reset()
	if s, err := d.Snapshot(); s != nil || err != nil {
		t.Fatalf("expected empty snapshot after reset")
	}
}

func TestReset_InFlightRefreshDoesNotRepublish(t *testing.T) {
	src := &stubOrders{orders: []domain.Order{{ID: "1", TotalAmount: 99}}, gate: make(chan struct{})}
	var authed atomic.Bool
	authed.Store(true)
	d := NewDashboard(src, authed.Load, time.Hour, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.Refresh(context.Background())
	}()
	for atomic.LoadInt32(&src.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	authed.Store(false)
	d.Reset()
	close(src.gate)
	wg.Wait()

	if s, _ := d.Snapshot(); s != nil {
		t.Fatalf("previous user's stats survived Reset: %+v", s)
	}

	src.gate = nil
	authed.Store(true)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh after reset: %v", err)
	}
	if s, _ := d.Snapshot(); s == nil || s.TotalOrders != 1 {
		t.Fatalf("expected a fresh snapshot after reset, got %+v", s)
	}
}
