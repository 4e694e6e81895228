package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotObject indicates a payload that should have been a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// Fields is a partial server representation of an entity: only the fields
// the response carried. Merges driven by Fields must never touch anything
// it does not carry.
type Fields map[string]json.RawMessage

// DecodeFields parses a single-entity response body into its carried
// field set.
func DecodeFields(data []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	return f, nil
}

// Has reports whether the response carried the named field.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// UpdatedAt returns the carried server timestamp, if any.
func (f Fields) UpdatedAt() (time.Time, bool) {
	raw, ok := f["updated_at"]
	if !ok {
		return time.Time{}, false
	}
	var ts time.Time
	if err := json.Unmarshal(raw, &ts); err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// StageStatus returns the carried status for the stage, if any.
func (f Fields) StageStatus(st Stage) (Status, bool) {
	raw, ok := f[st.StatusField()]
	if !ok {
		return "", false
	}
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Apply merges every carried, known field into the entity, leaving all
// other fields untouched. Fields for which skip returns true are left
// alone (unconfirmed local edits, guarded status regressions). Individual
// fields that fail to decode are skipped; the aggregate error reports them
// so callers can log without aborting the merge.
func (f Fields) Apply(e *Entity, skip func(name string) bool) error {
	var errs []error
	set := func(name string, dst any) {
		raw, ok := f[name]
		if !ok {
			return
		}
		if skip != nil && skip(name) {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", name, err))
		}
	}

	set("name", &e.Name)
	set("created_at", &e.CreatedAt)
	set("updated_at", &e.UpdatedAt)
	set("audio_file", &e.AudioFile)
	set("duration", &e.Duration)

	set("status_transcription", &e.StatusTranscription)
	set("status_recap", &e.StatusRecap)
	set("status_summary", &e.StatusSummary)
	set("status_analysis", &e.StatusAnalysis)
	set("status_coaching", &e.StatusCoaching)

	set("status_transcription_display", &e.StatusTranscriptionDisplay)
	set("status_recap_display", &e.StatusRecapDisplay)
	set("status_summary_display", &e.StatusSummaryDisplay)
	set("status_analysis_display", &e.StatusAnalysisDisplay)
	set("status_coaching_display", &e.StatusCoachingDisplay)

	set("transcription_text", &e.TranscriptionText)
	set("recap_text", &e.RecapText)
	set("summary_text", &e.SummaryText)
	set("analysis_results", &e.AnalysisResults)
	set("coaching_feedback", &e.CoachingFeedback)

	return errors.Join(errs...)
}
