// Package aiclient implements the HTTP client for the external AI service
// that provides transcription and text analysis. Transient transport errors
// are retried with exponential backoff.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/taskconvert/internal/domain"
)

const (
	maxAttempts = 3
	baseBackoff = time.Second
)

// Client talks to the AI service over HTTP. It satisfies both
// pipeline.Transcriber and pipeline.Analyzer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger

	// backoff is the initial retry delay; attempts double it up to 8x.
	backoff time.Duration
}

// New constructs a Client for the service at baseURL. timeout bounds each
// individual request attempt.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		log:        log,
		backoff:    baseBackoff,
	}
}

type transcriptionSegment struct {
	Speaker string   `json:"speaker,omitempty"`
	Text    string   `json:"text"`
	Start   *float64 `json:"start,omitempty"`
	End     *float64 `json:"end,omitempty"`
}

type transcriptionResponse struct {
	Segments []transcriptionSegment `json:"segments"`
}

// Transcribe uploads the audio file as multipart form data and returns the
// segments in transcription order.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]domain.Utterance, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, errors.Wrap(err, "read audio file")
	}

	var resp transcriptionResponse
	err = c.withRetry(ctx, "transcribe", func() error {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
		if err != nil {
			return errors.Wrap(err, "create form file")
		}
		if _, err := part.Write(audio); err != nil {
			return errors.Wrap(err, "write form file")
		}
		if err := mw.Close(); err != nil {
			return errors.Wrap(err, "close multipart writer")
		}
		return c.post(ctx, c.baseURL+"/transcribe", mw.FormDataContentType(), &body, &resp)
	})
	if err != nil {
		return nil, err
	}

	utterances := make([]domain.Utterance, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		utterances = append(utterances, domain.Utterance{
			Speaker: seg.Speaker,
			Text:    seg.Text,
			Start:   seg.Start,
			End:     seg.End,
		})
	}
	return utterances, nil
}

// Analyze submits the task description and returns the extracted summary.
func (c *Client) Analyze(ctx context.Context, text string) (domain.MeetingSummary, error) {
	reqBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return domain.MeetingSummary{}, errors.Wrap(err, "encode analyze request")
	}

	var resp domain.MeetingSummary
	err = c.withRetry(ctx, "analyze", func() error {
		return c.post(ctx, c.baseURL+"/analyze", "application/json", bytes.NewReader(reqBody), &resp)
	})
	if err != nil {
		return domain.MeetingSummary{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, url, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(payload)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ai service returned %d: %s", e.code, e.body)
}

// withRetry runs fn up to maxAttempts times, backing off exponentially.
// Only transport timeouts and 5xx responses are retried; anything else is a
// permanent failure for this job.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	delay := c.backoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		c.log.Warn("ai request failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(lastErr))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if delay *= 2; delay > 8*c.backoff {
			delay = 8 * c.backoff
		}
	}
	return lastErr
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
