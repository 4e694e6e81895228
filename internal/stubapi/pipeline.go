package stubapi

import (
	"fmt"
	"time"

	"talktrack/internal/entity"
	"talktrack/internal/shared/telemetry"
)

// startPipeline simulates the server-side processing pipeline for a
// freshly created recording. Transcription runs first; the derived stages
// start only once it completes. A recording without audio fails every
// stage immediately, the way the production pipeline aborts when the
// media reference is missing.
func (s *Server) startPipeline(resource string, id int64) {
	s.mu.Lock()
	rec, ok := s.collections[resource].byID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	hasAudio := rec.audioFile != nil
	kind := rec.kind
	s.mu.Unlock()

	if !hasAudio {
		for _, st := range entity.StagesFor(kind) {
			s.setStage(resource, id, st, entity.StatusFailed, nil)
		}
		telemetry.Warn("pipeline.no_audio", map[string]any{"resource": resource, "id": id})
		return
	}

	d := s.opts.StageDelay
	time.AfterFunc(d, func() {
		s.setStage(resource, id, entity.StageTranscription, entity.StatusProcessing, nil)
	})
	time.AfterFunc(2*d, func() {
		s.setStage(resource, id, entity.StageTranscription, entity.StatusCompleted, cannedTranscript(id))

		for i, st := range entity.StagesFor(kind) {
			if st == entity.StageTranscription {
				continue
			}
			st := st
			offset := time.Duration(i) * d
			time.AfterFunc(offset+d, func() {
				s.setStage(resource, id, st, entity.StatusProcessing, nil)
			})
			time.AfterFunc(offset+2*d, func() {
				s.setStage(resource, id, st, entity.StatusCompleted, cannedResult(st, id))
			})
		}
	})
}

// setStage transitions one stage, keeping the result populated exactly
// when the stage is completed. Recordings deleted mid-pipeline are left
// alone.
func (s *Server) setStage(resource string, id int64, st entity.Stage, status entity.Status, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collections[resource].byID[id]
	if !ok {
		return
	}
	rec.status[st] = status
	if status == entity.StatusCompleted && result != nil {
		rec.results[st] = result
	} else {
		delete(rec.results, st)
	}
	rec.updatedAt = time.Now()
}

func cannedTranscript(id int64) string {
	return fmt.Sprintf(
		"This is the simulated transcription for recording %d. It contained important details discussed during the session.",
		id,
	)
}

func cannedResult(st entity.Stage, id int64) any {
	switch st {
	case entity.StageRecap:
		return fmt.Sprintf("Recap of recording %d: the participants walked through the project status and agreed on next steps.", id)
	case entity.StageSummary:
		return fmt.Sprintf("Summary of recording %d: a productive session covering progress, testing plans, and the deployment deadline.", id)
	case entity.StageAnalysis:
		return entity.AnalysisResult{
			TalkTimeRatio: map[string]int{"Speaker 0": 55, "Speaker 1": 45},
			Sentiment: entity.SentimentResult{
				Label:     "Neutral",
				Reasoning: "The conversation mixed positive updates with neutral planning.",
			},
			Topics: []string{"Project Status Update", "Feature Testing Schedule", "Deployment Deadline"},
		}
	case entity.StageCoaching:
		return fmt.Sprintf("Coaching feedback for recording %d: clear articulation throughout; consider asking more follow-up questions.", id)
	}
	return nil
}
