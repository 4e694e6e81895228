// Package recordings is the ownership boundary the view layer talks to.
// One Service tracks one collection (conversations or interviews) and
// composes the gateway, the in-memory store, the poll scheduler, and the
// optimistic mutator. Views call Load/Create/Rename/Delete/Dispose; they
// never manage timers or rollbacks themselves.
package recordings

import (
	"context"
	"time"

	"talktrack/internal/entity"
	"talktrack/internal/gateway"
	"talktrack/internal/mutator"
	"talktrack/internal/scheduler"
	"talktrack/internal/shared/telemetry"
	"talktrack/internal/store"
)

// Service tracks one entity collection end to end.
type Service struct {
	kind  entity.Kind
	gw    *gateway.Client
	store *store.Store
	sched *scheduler.Scheduler
	mut   *mutator.Mutator
}

// NewService wires a Service for the kind. pollInterval <= 0 selects the
// default 5 second period.
func NewService(kind entity.Kind, gw *gateway.Client, pollInterval time.Duration) *Service {
	st := store.New()
	fetch := func(ctx context.Context, key entity.Key) (entity.Fields, error) {
		return gw.Get(ctx, key.Kind, key.ID)
	}
	return &Service{
		kind:  kind,
		gw:    gw,
		store: st,
		sched: scheduler.New(st, fetch, pollInterval),
		mut:   mutator.New(st),
	}
}

// LoadAll fetches the full collection, merges it into the store, and
// starts polling if anything is unresolved. A failure here is a
// page-level error: the caller keeps its previous state and offers retry.
func (s *Service) LoadAll(ctx context.Context) error {
	entities, err := s.gw.List(ctx, s.kind)
	if err != nil {
		return err
	}
	s.store.UpsertMany(entities, store.Append)
	s.EnsurePolling()
	return nil
}

// List returns the current ordered collection.
func (s *Service) List() []entity.Entity {
	return s.store.List()
}

// Get returns one tracked entity.
func (s *Service) Get(id int64) (entity.Entity, bool) {
	return s.store.Get(entity.Key{Kind: s.kind, ID: id})
}

// EnsurePolling starts the scheduler when the pending set is non-empty.
// Safe to call at any time; a running scheduler is left alone and an
// empty pending set starts nothing.
func (s *Service) EnsurePolling() {
	if len(s.store.Pending()) == 0 {
		return
	}
	s.sched.Start()
}

// Polling reports whether the scheduler is currently running.
func (s *Service) Polling() bool { return s.sched.Running() }

// Create submits a new recording, prepends the created entity (all stages
// in their initial state) to the store, and ensures polling covers it.
func (s *Service) Create(ctx context.Context, sub gateway.Submission) (entity.Entity, error) {
	created, err := s.gw.Create(ctx, s.kind, sub)
	if err != nil {
		return entity.Entity{}, err
	}
	s.store.UpsertMany([]entity.Entity{created}, store.Prepend)
	s.EnsurePolling()
	telemetry.Info("recording.created", map[string]any{
		"kind": string(s.kind),
		"id":   created.ID,
	})
	return created, nil
}

// Rename edits the display name optimistically; see mutator.Rename for
// the guard and rollback contract.
func (s *Service) Rename(ctx context.Context, id int64, name string) error {
	key := entity.Key{Kind: s.kind, ID: id}
	return s.mut.Rename(ctx, key, name, func(ctx context.Context) (entity.Fields, error) {
		return s.gw.Patch(ctx, s.kind, id, map[string]any{"name": name})
	})
}

// RemoveAudio clears the entity's media reference by writing an explicit
// null.
func (s *Service) RemoveAudio(ctx context.Context, id int64) error {
	fields, err := s.gw.Patch(ctx, s.kind, id, map[string]any{"audio_file": nil})
	if err != nil {
		return err
	}
	return s.store.ApplyRemote(entity.Key{Kind: s.kind, ID: id}, fields)
}

// Delete removes the recording remotely and drops it from the store,
// which also removes it from the pending set. A remote 404 still removes
// locally: the entity is gone either way.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.gw.Delete(ctx, s.kind, id)
	if err != nil && !gateway.IsNotFound(err) {
		return err
	}
	s.store.Remove(entity.Key{Kind: s.kind, ID: id})
	return nil
}

// AudioDownloadURL returns a short-lived link for the stored media. Use
// it once; do not store it.
func (s *Service) AudioDownloadURL(ctx context.Context, id int64) (string, error) {
	return s.gw.DownloadURL(ctx, s.kind, id)
}

// Dispose tears the service down at the view boundary: the scheduler
// stops deterministically and never restarts.
func (s *Service) Dispose() {
	s.sched.Dispose()
}
