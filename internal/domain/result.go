package domain

import "strings"

// Utterance is one transcribed segment of audio. Segments are ordered by
// transcription order; Start/End are seconds when the transcriber supplies
// them.
type Utterance struct {
	Speaker string   `json:"speaker,omitempty"`
	Text    string   `json:"text"`
	Start   *float64 `json:"start,omitempty"`
	End     *float64 `json:"end,omitempty"`
}

// PublicUtterance is the projection served to clients: timing stripped.
type PublicUtterance struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// TaskItem is a single action item extracted from a task description.
type TaskItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee,omitempty"`
}

// MeetingSummary is the raw analyzer output for a task description.
type MeetingSummary struct {
	Summary string     `json:"summary"`
	Tasks   []TaskItem `json:"tasks"`
}

// TaskAnalysis is the result payload of a TASK job: the analyzer output
// plus the submission metadata echoed back.
type TaskAnalysis struct {
	Summary string       `json:"summary"`
	Tasks   []TaskItem   `json:"tasks"`
	Geo     *GeoLocation `json:"geo,omitempty"`
	Name    string       `json:"name,omitempty"`
	Group   string       `json:"group,omitempty"`
	Data    string       `json:"data,omitempty"`
}

// MergeUtterances collapses consecutive utterances by the same speaker into
// one, joining text with a single space and extending the end time. Order is
// preserved.
func MergeUtterances(in []Utterance) []Utterance {
	if len(in) == 0 {
		return nil
	}
	out := make([]Utterance, 0, len(in))
	buf := in[0]
	for _, cur := range in[1:] {
		if cur.Speaker == buf.Speaker {
			buf.Text = buf.Text + " " + strings.TrimSpace(cur.Text)
			if cur.End != nil {
				buf.End = cur.End
			}
			continue
		}
		out = append(out, buf)
		buf = cur
	}
	return append(out, buf)
}
