package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"talktrack/internal/entity"
	"talktrack/internal/store"
)

const testInterval = 10 * time.Millisecond

func pendingConv(id int64) entity.Entity {
	return entity.Entity{
		ID:                  id,
		Kind:                entity.KindConversation,
		Name:                fmt.Sprintf("conv %d", id),
		StatusTranscription: entity.StatusPending,
		StatusRecap:         entity.StatusCompleted,
		StatusSummary:       entity.StatusCompleted,
		StatusAnalysis:      entity.StatusCompleted,
		StatusCoaching:      entity.StatusCompleted,
	}
}

// scriptedFetch replays a fixed sequence of responses per key, recording
// every call.
type scriptedFetch struct {
	mu      sync.Mutex
	scripts map[entity.Key][]string
	calls   map[entity.Key]int
	err     error
}

func (f *scriptedFetch) fetch(ctx context.Context, key entity.Key) (entity.Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	script := f.scripts[key]
	idx := f.calls[key] - 1
	if idx >= len(script) {
		idx = len(script) - 1
	}
	return entity.DecodeFields([]byte(script[idx]))
}

func (f *scriptedFetch) callCount(key entity.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSchedulerConvergesAndSelfStops(t *testing.T) {
	st := store.New()
	st.UpsertMany([]entity.Entity{pendingConv(1)}, store.Append)
	key := entity.Key{Kind: entity.KindConversation, ID: 1}

	fetch := &scriptedFetch{
		scripts: map[entity.Key][]string{
			key: {
				`{"status_transcription":"processing"}`,
				`{"status_transcription":"completed","transcription_text":"all done"}`,
			},
		},
		calls: map[entity.Key]int{},
	}

	s := New(st, fetch.fetch, testInterval)
	s.Start()
	s.Start() // idempotent

	waitFor(t, "stage completion", func() bool {
		e, _ := st.Get(key)
		return e.StatusTranscription == entity.StatusCompleted
	})
	waitFor(t, "self-stop", func() bool { return !s.Running() })

	if e, _ := st.Get(key); e.TranscriptionText == nil || e.TranscriptionText.Text() != "all done" {
		t.Fatalf("transcript not merged: %+v", e.TranscriptionText)
	}

	// No further fetches once idle.
	settled := fetch.callCount(key)
	time.Sleep(5 * testInterval)
	if got := fetch.callCount(key); got != settled {
		t.Fatalf("fetches continued after self-stop: %d -> %d", settled, got)
	}
}

func TestSchedulerRevival(t *testing.T) {
	st := store.New()
	fetch := &scriptedFetch{
		scripts: map[entity.Key][]string{
			{Kind: entity.KindConversation, ID: 7}: {`{"status_transcription":"completed","transcription_text":"ok"}`},
		},
		calls: map[entity.Key]int{},
	}
	s := New(st, fetch.fetch, testInterval)

	// Nothing pending: the first tick stops the scheduler.
	s.Start()
	waitFor(t, "initial self-stop", func() bool { return !s.Running() })

	// A new pending entity re-arms it.
	st.UpsertMany([]entity.Entity{pendingConv(7)}, store.Prepend)
	s.Start()
	waitFor(t, "revived completion", func() bool {
		e, _ := st.Get(entity.Key{Kind: entity.KindConversation, ID: 7})
		return e.StatusTranscription == entity.StatusCompleted
	})
	waitFor(t, "second self-stop", func() bool { return !s.Running() })
}

func TestSchedulerStopAndDispose(t *testing.T) {
	st := store.New()
	st.UpsertMany([]entity.Entity{pendingConv(1)}, store.Append)
	fetch := &scriptedFetch{
		scripts: map[entity.Key][]string{
			{Kind: entity.KindConversation, ID: 1}: {`{"status_transcription":"pending"}`},
		},
		calls: map[entity.Key]int{},
	}
	s := New(st, fetch.fetch, testInterval)

	s.Stop() // safe while idle
	s.Start()
	waitFor(t, "running", s.Running)
	s.Stop()
	if s.Running() {
		t.Fatalf("stop must transition to idle")
	}
	s.Stop() // safe repeatedly

	s.Dispose()
	s.Start()
	if s.Running() {
		t.Fatalf("start after dispose must be a no-op")
	}
}

func TestSchedulerSwallowsPerEntityFailures(t *testing.T) {
	st := store.New()
	st.UpsertMany([]entity.Entity{pendingConv(1), pendingConv(2)}, store.Append)
	key1 := entity.Key{Kind: entity.KindConversation, ID: 1}
	key2 := entity.Key{Kind: entity.KindConversation, ID: 2}

	fetch := &scriptedFetch{
		scripts: map[entity.Key][]string{
			key2: {`{"status_transcription":"completed","transcription_text":"fine"}`},
		},
		calls: map[entity.Key]int{},
	}
	// Entity 1 always errors: its script is empty, so make fetch fail for
	// it specifically.
	base := fetch.fetch
	failing := func(ctx context.Context, key entity.Key) (entity.Fields, error) {
		if key == key1 {
			return nil, errors.New("boom")
		}
		return base(ctx, key)
	}

	s := New(st, failing, testInterval)
	s.Start()
	defer s.Dispose()

	waitFor(t, "healthy entity completion", func() bool {
		e, _ := st.Get(key2)
		return e.StatusTranscription == entity.StatusCompleted
	})
	if e, _ := st.Get(key1); e.StatusTranscription != entity.StatusPending {
		t.Fatalf("failing entity must stay pending, got %s", e.StatusTranscription)
	}
}
