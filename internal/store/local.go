package store

import "talktrack/internal/entity"

// LocalPatch is a shallow set of locally mutable fields. Nil members are
// untouched.
type LocalPatch struct {
	Name *string
}

// fields lists the wire names the patch touches.
func (p LocalPatch) fields() []string {
	var names []string
	if p.Name != nil {
		names = append(names, "name")
	}
	return names
}

// Snapshot holds pre-mutation values for the fields a local patch touched,
// for rollback on remote failure.
type Snapshot struct {
	Key   entity.Key
	patch LocalPatch
}

// PatchLocal applies an optimistic local edit, marks the touched fields as
// unconfirmed, and returns a snapshot of their prior values. A missing key
// is a benign race (entity deleted or navigated away from): the patch is a
// silent no-op and ok is false.
func (s *Store) PatchLocal(key entity.Key, patch LocalPatch) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key]
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{Key: key}
	if patch.Name != nil {
		prior := rec.entity.Name
		snap.patch.Name = &prior
		rec.entity.Name = *patch.Name
	}
	for _, name := range patch.fields() {
		rec.dirty[name] = struct{}{}
	}
	return snap, true
}

// ConfirmLocal marks the patch's fields as confirmed, keeping the
// optimistic values in place.
func (s *Store) ConfirmLocal(key entity.Key, patch LocalPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key]
	if !ok {
		return
	}
	for _, name := range patch.fields() {
		delete(rec.dirty, name)
	}
}

// RevertLocal restores the snapshot values and clears the unconfirmed
// marks. Reverting an absent key is a no-op.
func (s *Store) RevertLocal(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[snap.Key]
	if !ok {
		return
	}
	if snap.patch.Name != nil {
		rec.entity.Name = *snap.patch.Name
	}
	for _, name := range snap.patch.fields() {
		delete(rec.dirty, name)
	}
}
