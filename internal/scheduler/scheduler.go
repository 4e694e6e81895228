// Package scheduler owns the single recurring timer that keeps unresolved
// entities fresh. It asks the store which entities still have stages in
// flight, refetches exactly those, and merges the responses back in. It
// self-stops when nothing remains pending and is disposed by the view
// boundary on navigation away.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"talktrack/internal/entity"
	"talktrack/internal/gateway"
	"talktrack/internal/shared/telemetry"
	"talktrack/internal/store"
)

// DefaultInterval matches the reference polling period.
const DefaultInterval = 5 * time.Second

// defaultFetchLimit bounds concurrent per-entity fetches within one tick.
const defaultFetchLimit = 4

// FetchFunc refetches one entity and returns the fields the response
// carried.
type FetchFunc func(ctx context.Context, key entity.Key) (entity.Fields, error)

// Scheduler is the poll state machine: idle until started, running while
// any tracked entity has an unresolved stage.
type Scheduler struct {
	store    *store.Store
	fetch    FetchFunc
	interval time.Duration

	mu       sync.Mutex
	running  bool
	disposed bool
	cancel   context.CancelFunc

	tickBusy atomic.Bool
}

// New constructs a Scheduler over the store. interval <= 0 selects
// DefaultInterval.
func New(st *store.Store, fetch FetchFunc, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{store: st, fetch: fetch, interval: interval}
}

// Start transitions to running and arms the repeating timer. Idempotent:
// starting a running scheduler is a no-op, as is starting after Dispose.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	telemetry.Info("scheduler.start", map[string]any{"interval": s.interval.String()})
	go s.loop(ctx)
}

// Stop cancels the timer unconditionally and transitions to idle. Safe to
// call when already idle, and repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	telemetry.Info("scheduler.stop", nil)
}

// Dispose stops the scheduler and makes every later Start a no-op. Called
// by the owning view boundary on teardown.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.disposed = true
}

// Running reports whether the timer is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.runTick(ctx) {
				return
			}
		}
	}
}

// runTick launches one poll tick. Returns false when the scheduler should
// leave its loop because nothing remains pending.
func (s *Scheduler) runTick(ctx context.Context) bool {
	if s.tickBusy.Load() {
		// The previous tick's fetches have not resolved; skipping keeps
		// request growth bounded under slow networks.
		telemetry.Warn("scheduler.tick_skipped", map[string]any{"reason": "previous tick in flight"})
		return true
	}

	// Always the live store contents, never a snapshot from Start.
	keys := s.store.Pending()
	if len(keys) == 0 {
		s.Stop()
		return false
	}

	s.tickBusy.Store(true)
	go func() {
		defer s.tickBusy.Store(false)
		s.fetchAll(ctx, keys)
	}()
	return true
}

func (s *Scheduler) fetchAll(ctx context.Context, keys []entity.Key) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultFetchLimit)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			fields, err := s.fetch(ctx, key)
			if err != nil {
				if errors.Is(err, gateway.ErrSessionExpired) {
					// No point polling an invalid session.
					s.Stop()
					return nil
				}
				// One bad entity must not halt tracking of the others.
				telemetry.Warn("scheduler.fetch_failed", map[string]any{
					"kind": string(key.Kind),
					"id":   key.ID,
					"err":  err.Error(),
				})
				return nil
			}
			if err := s.store.ApplyRemote(key, fields); err != nil {
				telemetry.Warn("scheduler.merge_partial", map[string]any{
					"kind": string(key.Kind),
					"id":   key.ID,
					"err":  err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()
}
