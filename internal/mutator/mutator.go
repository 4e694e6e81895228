// Package mutator gives every metadata mutation the same optimistic
// apply/confirm/revert guarantee instead of hand-rolled per-call-site
// rollback blocks.
package mutator

import (
	"context"
	"strings"

	"talktrack/internal/entity"
	"talktrack/internal/shared/telemetry"
	"talktrack/internal/store"
)

// FailureKind classifies a surfaced mutation failure.
type FailureKind string

const (
	// FailureValidation rejected the edit before any network call.
	FailureValidation FailureKind = "validation"
	// FailureRemote means the remote write failed and the local state was
	// rolled back.
	FailureRemote FailureKind = "remote"
)

// Failure is the user-facing signal for a rejected or reverted mutation.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string { return string(f.Kind) + ": " + f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// RemoteWrite issues the write request for an already-applied local patch
// and returns the server's authoritative field set, if any.
type RemoteWrite func(ctx context.Context) (entity.Fields, error)

// Mutator applies local patches optimistically against a store.
type Mutator struct {
	store *store.Store
}

// New constructs a Mutator.
func New(st *store.Store) *Mutator {
	return &Mutator{store: st}
}

// Rename edits an entity's display name optimistically. No-op edits and
// blank names are rejected without issuing any network request. On remote
// failure the pre-edit name is restored and a Failure is returned.
func (m *Mutator) Rename(ctx context.Context, key entity.Key, name string, write RemoteWrite) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return &Failure{Kind: FailureValidation, Message: "name cannot be empty"}
	}
	current, ok := m.store.Get(key)
	if !ok {
		return &Failure{Kind: FailureValidation, Message: "recording no longer exists"}
	}
	if current.Name == trimmed {
		return &Failure{Kind: FailureValidation, Message: "name is unchanged"}
	}
	return m.Mutate(ctx, key, store.LocalPatch{Name: &trimmed}, write)
}

// Mutate applies the patch to the store immediately, retains the
// pre-mutation snapshot, then runs the remote write. Success confirms the
// optimistic state and reconciles with the server's response; failure
// reverts to the snapshot and surfaces a Failure.
func (m *Mutator) Mutate(ctx context.Context, key entity.Key, patch store.LocalPatch, write RemoteWrite) error {
	snap, ok := m.store.PatchLocal(key, patch)
	if !ok {
		// Benign race: the entity was deleted or navigated away from.
		return nil
	}

	fields, err := write(ctx)
	if err != nil {
		m.store.RevertLocal(snap)
		telemetry.Warn("mutation.reverted", map[string]any{
			"kind": string(key.Kind),
			"id":   key.ID,
			"err":  err.Error(),
		})
		return &Failure{Kind: FailureRemote, Message: "could not save changes", Err: err}
	}

	m.store.ConfirmLocal(key, patch)
	if fields != nil {
		// The server response is authoritative for whatever it carries.
		if err := m.store.ApplyRemote(key, fields); err != nil {
			telemetry.Warn("mutation.reconcile_partial", map[string]any{
				"kind": string(key.Kind),
				"id":   key.ID,
				"err":  err.Error(),
			})
		}
	}
	return nil
}
