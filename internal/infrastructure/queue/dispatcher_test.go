package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/core/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	byUser map[string][]string
	delay  time.Duration
}

func (s *recordingSink) Record(_ context.Context, ev domain.AuthEvent) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUser == nil {
		s.byUser = map[string][]string{}
	}
	s.byUser[ev.UserID] = append(s.byUser[ev.UserID], ev.Reason)
	return nil
}

func TestDispatcher_PreservesPerUserOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(3, sink, zerolog.Nop())
	d.Start()

	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for i := 0; i < 20; i++ {
		for _, u := range users {
			ev := domain.AuthEvent{Kind: domain.EventLogin, UserID: u, Reason: fmt.Sprint(i)}
			if err := d.Record(context.Background(), ev); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, u := range users {
		got := sink.byUser[u]
		if len(got) != 20 {
			t.Fatalf("user %s: expected 20 events, got %d", u, len(got))
		}
		for i, reason := range got {
			if reason != fmt.Sprint(i) {
				t.Fatalf("user %s: event %d out of order: %v", u, i, got)
			}
		}
	}
}

func TestDispatcher_CloseDrainsAndRejects(t *testing.T) {
	sink := &recordingSink{delay: time.Millisecond}
	d := NewDispatcher(1, sink, zerolog.Nop())
	d.Start()

	for i := 0; i < 10; i++ {
		_ = d.Record(context.Background(), domain.AuthEvent{UserID: "u1", Reason: fmt.Sprint(i)})
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(sink.byUser["u1"]); n != 10 {
		t.Fatalf("expected queued events to be recorded before Close returns, got %d", n)
	}

	if err := d.Record(context.Background(), domain.AuthEvent{UserID: "u1"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, &recordingSink{}, zerolog.Nop())
	for _, key := range []string{"", "u1", "someone@example.com"} {
		first := d.shardIndex(key)
		if first < 0 || first >= 8 {
			t.Fatalf("index %d out of range", first)
		}
		for i := 0; i < 5; i++ {
			if d.shardIndex(key) != first {
				t.Fatalf("shard index for %q is not stable", key)
			}
		}
	}
}
