package entity

import (
	"encoding/json"
	"testing"
)

func decodeTranscript(t *testing.T, raw string) Transcript {
	t.Helper()
	var tr Transcript
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		t.Fatalf("unmarshal transcript: %v", err)
	}
	return tr
}

func TestTranscriptPlainString(t *testing.T) {
	tr := decodeTranscript(t, `"Just a plain prose transcript."`)
	if tr.Unparseable {
		t.Fatalf("plain string must not be unparseable")
	}
	if len(tr.Segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(tr.Segments))
	}
	if tr.Text() != "Just a plain prose transcript." {
		t.Fatalf("unexpected text: %q", tr.Text())
	}
}

func TestTranscriptSegmentArray(t *testing.T) {
	tr := decodeTranscript(t, `[{"speaker":"Speaker 0","text":"Hey."},{"speaker":"Speaker 1","text":"Hi."}]`)
	if tr.Unparseable {
		t.Fatalf("segment array must not be unparseable")
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(tr.Segments))
	}
	if tr.Text() != "Speaker 0: Hey.\nSpeaker 1: Hi." {
		t.Fatalf("unexpected text: %q", tr.Text())
	}
}

func TestTranscriptDoubleEncoded(t *testing.T) {
	inner := `[{"speaker":"Speaker 0","text":"Nested."}]`
	raw, err := json.Marshal(inner)
	if err != nil {
		t.Fatalf("marshal inner: %v", err)
	}
	tr := decodeTranscript(t, string(raw))
	if tr.Unparseable {
		t.Fatalf("double-encoded array must decode")
	}
	if len(tr.Segments) != 1 || tr.Segments[0].Text != "Nested." {
		t.Fatalf("unexpected segments: %+v", tr.Segments)
	}
}

func TestTranscriptNumericSpeaker(t *testing.T) {
	tr := decodeTranscript(t, `[{"speaker":0,"text":"Numeric label."}]`)
	if tr.Segments[0].Speaker != "Speaker 0" {
		t.Fatalf("expected normalized speaker label, got %q", tr.Segments[0].Speaker)
	}
}

func TestTranscriptUnparseableFallback(t *testing.T) {
	// Looks structured but is broken JSON inside the string.
	tr := decodeTranscript(t, `"[{\"speaker\": broken"`)
	if !tr.Unparseable {
		t.Fatalf("expected unparseable fallback")
	}
	if tr.Raw == "" {
		t.Fatalf("raw payload must be preserved")
	}
}

func TestTranscriptNull(t *testing.T) {
	tr := decodeTranscript(t, `null`)
	if tr.Unparseable || tr.Raw != "" || tr.Segments != nil {
		t.Fatalf("null must decode to the zero transcript, got %+v", tr)
	}
}
