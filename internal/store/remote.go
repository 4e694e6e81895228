package store

import "talktrack/internal/entity"

// ApplyRemote merges a server response into the stored entity, field by
// field. Only fields the response carries are touched. Fields with an
// unconfirmed local edit keep their local value. A terminal stage status
// never regresses to pending/processing unless the response carries a
// strictly newer updated_at than the stored entity (a replaced job
// instance announced by server truth). An absent key is a benign race and
// a silent no-op. The returned error aggregates per-field decode failures
// for logging; decodable fields are merged regardless.
func (s *Store) ApplyRemote(key entity.Key, f entity.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key]
	if !ok {
		return nil
	}

	stamp, hasStamp := f.UpdatedAt()
	newer := hasStamp && stamp.After(rec.entity.UpdatedAt)

	guarded := make(map[string]struct{})
	for _, st := range entity.StagesFor(key.Kind) {
		next, carried := f.StageStatus(st)
		if !carried {
			continue
		}
		cur := rec.entity.StageStatus(st)
		if cur.Terminal() && next.Unresolved() && !newer {
			// Stale response for an already-resolved job instance: keep
			// status, label, and result together so the completed-iff-result
			// invariant holds.
			guarded[st.StatusField()] = struct{}{}
			guarded[st.DisplayField()] = struct{}{}
			guarded[st.ResultField()] = struct{}{}
		}
	}

	skip := func(name string) bool {
		if _, dirty := rec.dirty[name]; dirty {
			return true
		}
		_, g := guarded[name]
		return g
	}
	return f.Apply(&rec.entity, skip)
}
