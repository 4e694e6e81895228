package entity

import "time"

// Kind distinguishes the two trackable recording types.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindInterview    Kind = "interview"
)

// Resource returns the API collection name for the kind.
func (k Kind) Resource() string {
	switch k {
	case KindInterview:
		return "interviews"
	default:
		return "conversations"
	}
}

// Status is a processing-stage status as reported by the server.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further automatic
// transition for the current job instance.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Unresolved reports whether the stage still has server work in flight.
func (s Status) Unresolved() bool {
	return s == StatusPending || s == StatusProcessing
}

// Stage is one named background job type attached to an entity.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageRecap         Stage = "recap"
	StageSummary       Stage = "summary"
	StageAnalysis      Stage = "analysis"
	StageCoaching      Stage = "coaching"
)

var conversationStages = []Stage{
	StageTranscription, StageRecap, StageSummary, StageAnalysis, StageCoaching,
}

var interviewStages = []Stage{
	StageTranscription, StageAnalysis, StageCoaching,
}

// StagesFor returns the stages applicable to the kind. Recap and summary
// exist only on conversations.
func StagesFor(k Kind) []Stage {
	if k == KindInterview {
		return interviewStages
	}
	return conversationStages
}

// StatusField returns the wire name of the stage's status field.
func (st Stage) StatusField() string { return "status_" + string(st) }

// DisplayField returns the wire name of the stage's human-readable label.
// The label is display-only and never drives logic.
func (st Stage) DisplayField() string { return "status_" + string(st) + "_display" }

// ResultField returns the wire name of the stage's result payload.
func (st Stage) ResultField() string {
	switch st {
	case StageTranscription:
		return "transcription_text"
	case StageRecap:
		return "recap_text"
	case StageSummary:
		return "summary_text"
	case StageAnalysis:
		return "analysis_results"
	case StageCoaching:
		return "coaching_feedback"
	}
	return ""
}

// Key identifies an entity across both collections.
type Key struct {
	Kind Kind
	ID   int64
}

// SentimentResult is the sentiment portion of an analysis payload.
type SentimentResult struct {
	Label     string `json:"label"`
	Reasoning string `json:"reasoning"`
}

// AnalysisResult is the structured payload of a completed analysis stage.
type AnalysisResult struct {
	TalkTimeRatio map[string]int  `json:"talk_time_ratio"`
	Sentiment     SentimentResult `json:"sentiment"`
	Topics        []string        `json:"topics"`
}

// Entity is a conversation or interview tracked by the engine. Field names
// mirror the server serializer; stage results are nil until their stage
// completes.
type Entity struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	AudioFile *string   `json:"audio_file"`
	Duration  *int      `json:"duration"`

	StatusTranscription Status `json:"status_transcription"`
	StatusRecap         Status `json:"status_recap,omitempty"`
	StatusSummary       Status `json:"status_summary,omitempty"`
	StatusAnalysis      Status `json:"status_analysis"`
	StatusCoaching      Status `json:"status_coaching"`

	StatusTranscriptionDisplay string `json:"status_transcription_display"`
	StatusRecapDisplay         string `json:"status_recap_display,omitempty"`
	StatusSummaryDisplay       string `json:"status_summary_display,omitempty"`
	StatusAnalysisDisplay      string `json:"status_analysis_display"`
	StatusCoachingDisplay      string `json:"status_coaching_display"`

	TranscriptionText *Transcript     `json:"transcription_text"`
	RecapText         *string         `json:"recap_text,omitempty"`
	SummaryText       *string         `json:"summary_text,omitempty"`
	AnalysisResults   *AnalysisResult `json:"analysis_results"`
	CoachingFeedback  *string         `json:"coaching_feedback"`
}

// Key returns the store key for the entity.
func (e Entity) Key() Key { return Key{Kind: e.Kind, ID: e.ID} }

// StageStatus returns the status of one stage.
func (e Entity) StageStatus(st Stage) Status {
	switch st {
	case StageTranscription:
		return e.StatusTranscription
	case StageRecap:
		return e.StatusRecap
	case StageSummary:
		return e.StatusSummary
	case StageAnalysis:
		return e.StatusAnalysis
	case StageCoaching:
		return e.StatusCoaching
	}
	return ""
}

// SetStageStatus sets the status of one stage.
func (e *Entity) SetStageStatus(st Stage, s Status) {
	switch st {
	case StageTranscription:
		e.StatusTranscription = s
	case StageRecap:
		e.StatusRecap = s
	case StageSummary:
		e.StatusSummary = s
	case StageAnalysis:
		e.StatusAnalysis = s
	case StageCoaching:
		e.StatusCoaching = s
	}
}

// HasResult reports whether the stage's result payload is populated.
func (e Entity) HasResult(st Stage) bool {
	switch st {
	case StageTranscription:
		return e.TranscriptionText != nil
	case StageRecap:
		return e.RecapText != nil
	case StageSummary:
		return e.SummaryText != nil
	case StageAnalysis:
		return e.AnalysisResults != nil
	case StageCoaching:
		return e.CoachingFeedback != nil
	}
	return false
}

// IsPending reports whether any applicable stage of the entity is still
// unresolved. This is the sole signal the poll scheduler consults.
func IsPending(e Entity) bool {
	for _, st := range StagesFor(e.Kind) {
		if e.StageStatus(st).Unresolved() {
			return true
		}
	}
	return false
}

// PendingKeys filters a collection down to the keys of entities with at
// least one unresolved stage, preserving order.
func PendingKeys(entities []Entity) []Key {
	var keys []Key
	for _, e := range entities {
		if IsPending(e) {
			keys = append(keys, e.Key())
		}
	}
	return keys
}
