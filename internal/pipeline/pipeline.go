// Package pipeline turns validated submissions into result payloads by
// invoking the external AI capabilities. It is polymorphic over job type and
// never touches job state itself; the dispatcher owns transitions.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/you/taskconvert/internal/domain"
)

// Transcriber converts an audio file into ordered utterances.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]domain.Utterance, error)
}

// Analyzer extracts a summary and action items from a task description.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (domain.MeetingSummary, error)
}

// Pipeline executes the per-type processing logic.
type Pipeline struct {
	transcriber Transcriber
	analyzer    Analyzer
}

// New constructs a Pipeline over the two collaborator capabilities.
func New(transcriber Transcriber, analyzer Analyzer) *Pipeline {
	return &Pipeline{transcriber: transcriber, analyzer: analyzer}
}

// ProcessAudio transcribes the spooled payload, merges consecutive
// same-speaker segments, and returns the public projection as JSON. Any
// transcription failure surfaces as an error; no partial result is produced.
func (p *Pipeline) ProcessAudio(ctx context.Context, sub domain.AudioSubmission) (json.RawMessage, error) {
	utterances, err := p.transcriber.Transcribe(ctx, sub.AudioPath)
	if err != nil {
		return nil, errors.Wrap(err, "transcribe audio")
	}
	merged := domain.MergeUtterances(utterances)
	public := make([]domain.PublicUtterance, 0, len(merged))
	for _, u := range merged {
		public = append(public, domain.PublicUtterance{Speaker: u.Speaker, Text: u.Text})
	}
	payload, err := json.Marshal(public)
	if err != nil {
		return nil, errors.Wrap(err, "encode utterances")
	}
	return payload, nil
}

// ProcessTask analyzes the description and folds the submission metadata
// into the result payload.
func (p *Pipeline) ProcessTask(ctx context.Context, sub domain.TaskSubmission) (json.RawMessage, error) {
	summary, err := p.analyzer.Analyze(ctx, sub.Description)
	if err != nil {
		return nil, errors.Wrap(err, "analyze task")
	}
	result := domain.TaskAnalysis{
		Summary: summary.Summary,
		Tasks:   summary.Tasks,
		Geo:     sub.Geo,
		Name:    sub.Name,
		Group:   sub.Group,
		Data:    sub.Data,
	}
	if result.Tasks == nil {
		result.Tasks = []domain.TaskItem{}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "encode analysis")
	}
	return payload, nil
}
