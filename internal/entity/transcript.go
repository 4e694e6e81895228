package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TranscriptSegment is one speaker turn in a normalized transcript.
type TranscriptSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript is the canonical form of a transcription result. Historical
// server payloads arrive in three shapes: a plain prose string, a JSON
// array of speaker segments, or a JSON string that itself contains the
// encoded segment array. All of them normalize into this one type at the
// decode boundary. Payloads that look structured but do not parse are kept
// verbatim with Unparseable set instead of being guessed at.
type Transcript struct {
	Segments    []TranscriptSegment
	Raw         string
	Unparseable bool
}

// flexSegment tolerates numeric speaker labels from older payloads.
type flexSegment struct {
	Speaker json.RawMessage `json:"speaker"`
	Text    string          `json:"text"`
}

func (fs flexSegment) normalize() TranscriptSegment {
	seg := TranscriptSegment{Text: fs.Text}
	if len(fs.Speaker) == 0 {
		return seg
	}
	var label string
	if err := json.Unmarshal(fs.Speaker, &label); err == nil {
		seg.Speaker = label
		return seg
	}
	var idx int
	if err := json.Unmarshal(fs.Speaker, &idx); err == nil {
		seg.Speaker = fmt.Sprintf("Speaker %d", idx)
	}
	return seg
}

// UnmarshalJSON implements the tagged decode across all historical shapes.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*t = Transcript{}
		return nil
	}

	var segments []flexSegment
	if err := json.Unmarshal(data, &segments); err == nil {
		*t = fromSegments(segments)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*t = fromString(text)
		return nil
	}

	*t = Transcript{Raw: trimmed, Unparseable: true}
	return nil
}

func fromString(text string) Transcript {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		// Double-encoded payload: the string carries JSON of its own.
		var segments []flexSegment
		if err := json.Unmarshal([]byte(trimmed), &segments); err == nil {
			return fromSegments(segments)
		}
		return Transcript{Raw: text, Unparseable: true}
	}
	return Transcript{Raw: text}
}

func fromSegments(segments []flexSegment) Transcript {
	out := make([]TranscriptSegment, 0, len(segments))
	for _, fs := range segments {
		out = append(out, fs.normalize())
	}
	return Transcript{Segments: out}
}

// MarshalJSON emits the canonical representation: the segment array when
// segments exist, the raw text otherwise.
func (t Transcript) MarshalJSON() ([]byte, error) {
	if t.Segments != nil {
		return json.Marshal(t.Segments)
	}
	return json.Marshal(t.Raw)
}

// Text renders the transcript as display text, one line per segment.
func (t Transcript) Text() string {
	if len(t.Segments) == 0 {
		return t.Raw
	}
	var b strings.Builder
	for i, seg := range t.Segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		if seg.Speaker != "" {
			b.WriteString(seg.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
