package entity

import (
	"testing"
	"time"
)

func TestIsPending(t *testing.T) {
	e := Entity{
		Kind:                KindConversation,
		StatusTranscription: StatusCompleted,
		StatusRecap:         StatusCompleted,
		StatusSummary:       StatusCompleted,
		StatusAnalysis:      StatusCompleted,
		StatusCoaching:      StatusFailed,
	}
	if IsPending(e) {
		t.Fatalf("all-terminal entity must not be pending")
	}

	e.StatusSummary = StatusProcessing
	if !IsPending(e) {
		t.Fatalf("processing stage must make the entity pending")
	}
}

func TestIsPendingIgnoresInapplicableStages(t *testing.T) {
	// An interview has no recap/summary stages; their zero-value statuses
	// must not count as pending.
	e := Entity{
		Kind:                KindInterview,
		StatusTranscription: StatusCompleted,
		StatusAnalysis:      StatusCompleted,
		StatusCoaching:      StatusCompleted,
	}
	if IsPending(e) {
		t.Fatalf("resolved interview must not be pending")
	}
}

func TestPendingKeysPreservesOrder(t *testing.T) {
	entities := []Entity{
		{ID: 1, Kind: KindConversation, StatusTranscription: StatusCompleted, StatusRecap: StatusCompleted, StatusSummary: StatusCompleted, StatusAnalysis: StatusCompleted, StatusCoaching: StatusCompleted},
		{ID: 2, Kind: KindConversation, StatusTranscription: StatusPending},
		{ID: 3, Kind: KindInterview, StatusTranscription: StatusProcessing},
	}
	keys := PendingKeys(entities)
	if len(keys) != 2 {
		t.Fatalf("expected 2 pending keys, got %d", len(keys))
	}
	if keys[0] != (Key{Kind: KindConversation, ID: 2}) || keys[1] != (Key{Kind: KindInterview, ID: 3}) {
		t.Fatalf("unexpected keys: %+v", keys)
	}
}

func TestFieldsApplyOnlyCarried(t *testing.T) {
	fields, err := DecodeFields([]byte(`{"status_transcription":"completed","transcription_text":"done","updated_at":"2025-05-01T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}

	e := Entity{
		Kind:                KindConversation,
		Name:                "Untouched title",
		StatusTranscription: StatusProcessing,
	}
	if err := fields.Apply(&e, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if e.StatusTranscription != StatusCompleted {
		t.Fatalf("status not applied: %s", e.StatusTranscription)
	}
	if e.TranscriptionText == nil || e.TranscriptionText.Text() != "done" {
		t.Fatalf("transcript not applied: %+v", e.TranscriptionText)
	}
	if e.Name != "Untouched title" {
		t.Fatalf("uncarried field was modified: %q", e.Name)
	}
	if stamp, ok := fields.UpdatedAt(); !ok || !stamp.Equal(time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("updated_at not readable: %v %v", stamp, ok)
	}
}

func TestFieldsApplySkip(t *testing.T) {
	fields, err := DecodeFields([]byte(`{"name":"server name","duration":42}`))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	e := Entity{Kind: KindConversation, Name: "local name"}
	if err := fields.Apply(&e, func(name string) bool { return name == "name" }); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if e.Name != "local name" {
		t.Fatalf("skipped field was overwritten: %q", e.Name)
	}
	if e.Duration == nil || *e.Duration != 42 {
		t.Fatalf("non-skipped field not applied: %v", e.Duration)
	}
}

func TestFieldsApplyToleratesBadField(t *testing.T) {
	fields, err := DecodeFields([]byte(`{"duration":"not a number","name":"still applies"}`))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	e := Entity{Kind: KindConversation}
	err = fields.Apply(&e, nil)
	if err == nil {
		t.Fatalf("expected an aggregate error for the bad field")
	}
	if e.Name != "still applies" {
		t.Fatalf("good field must apply despite the bad one: %q", e.Name)
	}
}

func TestDecodeFieldsRejectsNonObject(t *testing.T) {
	if _, err := DecodeFields([]byte(`[1,2,3]`)); err == nil {
		t.Fatalf("expected an error for a non-object payload")
	}
}
