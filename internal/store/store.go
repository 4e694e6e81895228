// Package store holds the in-memory session collection of tracked
// entities. It is the single place server truth and optimistic local
// edits meet: remote merges are field-level, never whole-entity, and an
// unconfirmed local edit is never clobbered by a poll result.
package store

import (
	"sync"

	"talktrack/internal/entity"
)

// Placement controls where UpsertMany inserts entities it has not seen.
type Placement int

const (
	// Append adds new entities at the end of the list.
	Append Placement = iota
	// Prepend adds new entities at the front, newest-first caller policy.
	Prepend
)

type record struct {
	entity entity.Entity
	dirty  map[string]struct{}
}

// Store is an ordered, keyed, in-memory entity collection safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	byKey map[entity.Key]*record
	order []entity.Key
}

// New constructs an empty Store.
func New() *Store {
	return &Store{byKey: make(map[entity.Key]*record)}
}

// UpsertMany replaces or inserts entities by key preserving list order.
// Replaced entities take the incoming server state wholesale except for
// fields with an unconfirmed local edit, which keep their local value.
func (s *Store) UpsertMany(entities []entity.Entity, placement Placement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []entity.Key
	for _, e := range entities {
		key := e.Key()
		if rec, ok := s.byKey[key]; ok {
			for name := range rec.dirty {
				copyLocalField(name, &rec.entity, &e)
			}
			rec.entity = e
			continue
		}
		s.byKey[key] = &record{entity: e, dirty: make(map[string]struct{})}
		fresh = append(fresh, key)
	}

	if len(fresh) == 0 {
		return
	}
	if placement == Prepend {
		s.order = append(fresh, s.order...)
		return
	}
	s.order = append(s.order, fresh...)
}

// List returns an ordered copy of the collection.
func (s *Store) List() []entity.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Entity, 0, len(s.order))
	for _, key := range s.order {
		if rec, ok := s.byKey[key]; ok {
			out = append(out, rec.entity)
		}
	}
	return out
}

// Get returns the entity for the key, if present.
func (s *Store) Get(key entity.Key) (entity.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byKey[key]
	if !ok {
		return entity.Entity{}, false
	}
	return rec.entity, true
}

// Len returns the number of tracked entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Remove deletes the entity by key. Removing an absent key is a no-op:
// the entity was already deleted or never loaded.
func (s *Store) Remove(key entity.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; !ok {
		return
	}
	delete(s.byKey, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Pending returns the keys of entities with at least one unresolved stage,
// evaluated against the live collection.
func (s *Store) Pending() []entity.Key {
	return entity.PendingKeys(s.List())
}

// copyLocalField carries a locally mutable field's value from one entity
// to another. Only fields the mutator may touch are supported.
func copyLocalField(name string, from, to *entity.Entity) {
	switch name {
	case "name":
		to.Name = from.Name
	}
}
