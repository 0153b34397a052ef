// Package validate rejects malformed submissions before any job state is
// created. Checks are pure; nothing is read beyond what the caller hands in.
package validate

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/you/taskconvert/internal/domain"
)

// ErrInvalidInput marks a client-side validation failure. The HTTP layer
// maps it to a 400; wrap it with context describing the offending field.
var ErrInvalidInput = errors.New("invalid input")

// DefaultMaxAudioBytes is the audio payload ceiling. Payloads at or above
// this size are rejected.
const DefaultMaxAudioBytes int64 = 500 * 1024 * 1024

// Validator holds the configured submission limits.
type Validator struct {
	maxAudioBytes int64
}

// New returns a Validator with the given audio ceiling; non-positive values
// fall back to DefaultMaxAudioBytes.
func New(maxAudioBytes int64) *Validator {
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	return &Validator{maxAudioBytes: maxAudioBytes}
}

// MaxAudioBytes exposes the configured ceiling so the transport layer can
// stop spooling as soon as a body crosses it.
func (v *Validator) MaxAudioBytes() int64 { return v.maxAudioBytes }

// Audio checks an audio submission: owner present, payload present, payload
// under the ceiling.
func (v *Validator) Audio(sub domain.AudioSubmission) error {
	if strings.TrimSpace(sub.UserID) == "" {
		return errors.Wrap(ErrInvalidInput, "userID missing")
	}
	if sub.AudioPath == "" || sub.SizeBytes == 0 {
		return errors.Wrap(ErrInvalidInput, "audio payload missing")
	}
	if sub.SizeBytes >= v.maxAudioBytes {
		return errors.Wrapf(ErrInvalidInput, "audio payload too large: %d bytes (limit %d)", sub.SizeBytes, v.maxAudioBytes)
	}
	return nil
}

// Task checks a task submission: owner and description are required, the
// rest is passed through as-is.
func (v *Validator) Task(sub domain.TaskSubmission) error {
	if strings.TrimSpace(sub.UserID) == "" {
		return errors.Wrap(ErrInvalidInput, "userID missing")
	}
	if strings.TrimSpace(sub.Description) == "" {
		return errors.Wrap(ErrInvalidInput, "description missing")
	}
	return nil
}
