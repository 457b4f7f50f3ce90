package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	recordTimeout  = 5 * time.Second
)

// ErrClosed is returned by Record once the dispatcher has been closed.
var ErrClosed = errors.New("audit dispatcher closed")

// Dispatcher routes auth events to a fixed set of workers using consistent
// hashing on the user, guaranteeing per-user event ordering while keeping
// slow audit writes off the session path.
type Dispatcher struct {
	workers []chan domain.AuthEvent
	next    ports.AuthEventRecorder
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ ports.AuthEventRecorder = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers feeding
// next. If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, next ports.AuthEventRecorder, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuthEvent, numWorkers),
		next:    next,
		log:     log.With().Str("component", "audit_dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuthEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers run until Close.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Record enqueues ev on the worker responsible for its user. It blocks only
// while that worker's buffer is full, and gives up when ctx is done.
func (d *Dispatcher) Record(ctx context.Context, ev domain.AuthEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.workers[d.shardIndex(shardKey(ev))] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits until the queued ones are recorded.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shardKey(ev domain.AuthEvent) string {
	if ev.UserID != "" {
		return ev.UserID
	}
	return ev.Email
}

// shardIndex maps a user deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan domain.AuthEvent) {
	defer d.wg.Done()
	for ev := range ch {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := d.next.Record(ctx, ev); err != nil {
			d.log.Error().Err(err).
				Str("event", string(ev.Kind)).
				Str("user_id", ev.UserID).
				Int("worker_id", id).
				Msg("audit record failed")
		}
		cancel()
	}
}
