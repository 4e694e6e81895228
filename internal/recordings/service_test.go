package recordings

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"talktrack/internal/entity"
	"talktrack/internal/gateway"
	"talktrack/internal/mutator"
	"talktrack/internal/session"
	"talktrack/internal/stubapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newHarness spins up the stub backend, authenticates a gateway against
// it, and wires a Service with fast timings.
func newHarness(t *testing.T, kind entity.Kind) (*Service, *gateway.Client) {
	t.Helper()
	stub := stubapi.NewServer(stubapi.Options{StageDelay: 2 * time.Millisecond})
	stub.SeedUser("dev", "dev@example.com", "secret")
	srv := httptest.NewServer(stub.Engine())
	t.Cleanup(srv.Close)

	sess := session.New(nil)
	gw := gateway.New(srv.URL, sess, gateway.Options{})
	if err := gw.Login(context.Background(), "dev", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	svc := NewService(kind, gw, 5*time.Millisecond)
	t.Cleanup(svc.Dispose)
	return svc, gw
}

func submission(name string) gateway.Submission {
	duration := 120
	return gateway.Submission{
		Name:     name,
		FileName: "session.mp3",
		MIMEType: "audio/mpeg",
		Media:    strings.NewReader("fake mp3 bytes"),
		Size:     int64(len("fake mp3 bytes")),
		Duration: &duration,
	}
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

func TestCreateTracksToCompletion(t *testing.T) {
	svc, _ := newHarness(t, entity.KindConversation)
	ctx := context.Background()

	var progressCalls int32
	sub := submission("Weekly sync")
	sub.Progress = func(sent, total int64) { atomic.AddInt32(&progressCalls, 1) }

	created, err := svc.Create(ctx, sub)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Weekly sync" {
		t.Fatalf("unexpected name: %q", created.Name)
	}
	if atomic.LoadInt32(&progressCalls) == 0 {
		t.Fatalf("progress callback never fired")
	}
	if !svc.Polling() {
		t.Fatalf("a fresh pending recording must start the poller")
	}

	waitFor(t, "all stages resolved", func() bool {
		e, ok := svc.Get(created.ID)
		return ok && !entity.IsPending(e)
	})
	waitFor(t, "poller self-stop", func() bool { return !svc.Polling() })

	e, _ := svc.Get(created.ID)
	if e.StatusTranscription != entity.StatusCompleted {
		t.Fatalf("transcription not completed: %s", e.StatusTranscription)
	}
	if e.TranscriptionText == nil || !strings.Contains(e.TranscriptionText.Text(), "simulated transcription") {
		t.Fatalf("transcript missing after completion: %+v", e.TranscriptionText)
	}
	if e.AnalysisResults == nil || len(e.AnalysisResults.Topics) == 0 {
		t.Fatalf("analysis result missing: %+v", e.AnalysisResults)
	}
}

func TestLoadAllOrdersNewestFirst(t *testing.T) {
	svc, _ := newHarness(t, entity.KindConversation)
	ctx := context.Background()

	first, err := svc.Create(ctx, submission("first"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(ctx, submission("second"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.LoadAll(ctx); err != nil {
		t.Fatalf("load all: %v", err)
	}
	got := svc.List()
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestRenameOptimisticRollbackOnRemote404(t *testing.T) {
	svc, gw := newHarness(t, entity.KindConversation)
	ctx := context.Background()

	created, err := svc.Create(ctx, submission("Original"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The recording disappears server-side while it is still on screen.
	if err := gw.Delete(ctx, entity.KindConversation, created.ID); err != nil {
		t.Fatalf("remote delete: %v", err)
	}

	err = svc.Rename(ctx, created.ID, "New title")
	var failure *mutator.Failure
	if !errors.As(err, &failure) || failure.Kind != mutator.FailureRemote {
		t.Fatalf("expected a remote failure, got %v", err)
	}
	if e, ok := svc.Get(created.ID); !ok || e.Name != "Original" {
		t.Fatalf("name must roll back to the pre-edit value: %+v", e)
	}
}

func TestRenameValidationNeverHitsNetwork(t *testing.T) {
	svc, _ := newHarness(t, entity.KindConversation)
	ctx := context.Background()

	created, err := svc.Create(ctx, submission("Keep me"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = svc.Rename(ctx, created.ID, "  ")
	var failure *mutator.Failure
	if !errors.As(err, &failure) || failure.Kind != mutator.FailureValidation {
		t.Fatalf("expected a validation rejection, got %v", err)
	}
	if e, _ := svc.Get(created.ID); e.Name != "Keep me" {
		t.Fatalf("store must be untouched: %q", e.Name)
	}
}

func TestRenameCommit(t *testing.T) {
	svc, _ := newHarness(t, entity.KindConversation)
	ctx := context.Background()

	created, err := svc.Create(ctx, submission("Before"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Rename(ctx, created.ID, "After"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if e, _ := svc.Get(created.ID); e.Name != "After" {
		t.Fatalf("rename not committed: %q", e.Name)
	}

	// The committed name survives subsequent poll merges.
	waitFor(t, "pipeline completion", func() bool {
		e, ok := svc.Get(created.ID)
		return ok && !entity.IsPending(e)
	})
	if e, _ := svc.Get(created.ID); e.Name != "After" {
		t.Fatalf("poll merge clobbered the rename: %q", e.Name)
	}
}

func TestRemoveAudio(t *testing.T) {
	svc, _ := newHarness(t, entity.KindConversation)
	ctx := context.Background()

	created, err := svc.Create(ctx, submission("With media"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.AudioFile == nil {
		t.Fatalf("created recording must reference its media")
	}

	if err := svc.RemoveAudio(ctx, created.ID); err != nil {
		t.Fatalf("remove audio: %v", err)
	}
	if e, _ := svc.Get(created.ID); e.AudioFile != nil {
		t.Fatalf("media reference must clear: %v", *e.AudioFile)
	}

	// With the media gone, the link endpoint rejects.
	if _, err := svc.AudioDownloadURL(ctx, created.ID); gateway.KindOf(err) != gateway.KindValidation {
		t.Fatalf("expected a validation error for missing media, got %v", err)
	}
}

func TestDeleteToleratesRemote404(t *testing.T) {
	svc, gw := newHarness(t, entity.KindConversation)
	ctx := context.Background()

	created, err := svc.Create(ctx, submission("Doomed"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Deleted elsewhere first; the local delete still converges.
	if err := gw.Delete(ctx, entity.KindConversation, created.ID); err != nil {
		t.Fatalf("remote delete: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete after remote 404 must succeed: %v", err)
	}
	if _, ok := svc.Get(created.ID); ok {
		t.Fatalf("entity must be gone from the store")
	}
	waitFor(t, "poller settles", func() bool { return !svc.Polling() })
}

func TestAudioDownloadURL(t *testing.T) {
	svc, _ := newHarness(t, entity.KindInterview)
	ctx := context.Background()

	created, err := svc.Create(ctx, submission("Interview take"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	url, err := svc.AudioDownloadURL(ctx, created.ID)
	if err != nil {
		t.Fatalf("download url: %v", err)
	}
	if !strings.Contains(url, "token=") {
		t.Fatalf("expected a tokenized link, got %q", url)
	}
}
