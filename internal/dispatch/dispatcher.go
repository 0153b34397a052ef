// Package dispatch bridges synchronous job acceptance to asynchronous
// processing. A bounded worker pool is the sole writer of terminal job
// states and of result payloads.
package dispatch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/taskconvert/internal/domain"
	"github.com/you/taskconvert/internal/pipeline"
	"github.com/you/taskconvert/internal/results"
	"github.com/you/taskconvert/internal/storage"
)

// ErrStopped is returned by Enqueue after Stop has been called.
var ErrStopped = errors.New("dispatch: dispatcher stopped")

// Work is one accepted job plus its validated submission. Exactly one of
// Audio and Task is set, matching Job.Type.
type Work struct {
	Job   domain.Job
	Audio *domain.AudioSubmission
	Task  *domain.TaskSubmission
}

// Dispatcher runs accepted jobs on a fixed pool of workers. Each job is
// handed to exactly one worker; transitions for a job are applied in order
// by that worker alone.
type Dispatcher struct {
	store   storage.Store
	results results.Store
	pipe    *pipeline.Pipeline
	log     *zap.Logger

	jobs    chan Work
	workers int
	timeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New constructs a Dispatcher. timeout bounds the processing of a single
// job so a hung collaborator cannot pin a job in PROCESSING forever.
func New(store storage.Store, res results.Store, pipe *pipeline.Pipeline, workers, queueSize int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Dispatcher{
		store:   store,
		results: res,
		pipe:    pipe,
		log:     log,
		jobs:    make(chan Work, queueSize),
		workers: workers,
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.workerLoop()
		}
	})
}

// Stop prevents further enqueues and waits for in-flight work to finish.
// Jobs still sitting in the queue are not processed.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

// Enqueue hands an accepted job to the pool. It blocks while the queue is
// saturated, so acceptance applies backpressure instead of losing jobs.
func (d *Dispatcher) Enqueue(ctx context.Context, w Work) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case d.jobs <- w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case w := <-d.jobs:
			d.process(w)
		}
	}
}

func (d *Dispatcher) process(w Work) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	// Store writes get their own context: a processing timeout must not
	// prevent recording the terminal state.
	sctx, scancel := context.WithTimeout(context.Background(), d.timeout+30*time.Second)
	defer scancel()

	log := d.log.With(zap.String("job_id", w.Job.JobID), zap.String("type", string(w.Job.Type)))
	if w.Audio != nil {
		defer func() {
			if err := os.Remove(w.Audio.AudioPath); err != nil && !os.IsNotExist(err) {
				log.Warn("removing spooled audio", zap.Error(err))
			}
		}()
	}

	if _, err := d.store.Transition(sctx, w.Job.JobID, domain.StatusProcessing, ""); err != nil {
		// Transition bugs must not corrupt other jobs; log and abandon.
		log.Error("transition to PROCESSING", zap.Error(err))
		return
	}
	log.Info("processing started")

	payload, err := d.run(ctx, w)
	if err != nil {
		log.Warn("processing failed", zap.Error(err))
		if _, terr := d.store.Transition(sctx, w.Job.JobID, domain.StatusFailed, err.Error()); terr != nil {
			log.Error("transition to FAILED", zap.Error(terr))
		}
		return
	}

	// Result first, then SUCCEEDED: a reader that observes SUCCEEDED must
	// always find the result available.
	if err := d.results.Put(sctx, w.Job.JobID, payload); err != nil {
		if errors.Is(err, results.ErrAlreadyExists) {
			log.Error("duplicate result write", zap.Error(err))
		} else {
			if _, terr := d.store.Transition(sctx, w.Job.JobID, domain.StatusFailed, "storing result: "+err.Error()); terr != nil {
				log.Error("transition to FAILED", zap.Error(terr))
			}
			return
		}
	}
	if _, err := d.store.Transition(sctx, w.Job.JobID, domain.StatusSucceeded, ""); err != nil {
		log.Error("transition to SUCCEEDED", zap.Error(err))
		return
	}
	log.Info("processing succeeded", zap.Int("payload_bytes", len(payload)))
}

func (d *Dispatcher) run(ctx context.Context, w Work) ([]byte, error) {
	switch {
	case w.Audio != nil:
		return d.pipe.ProcessAudio(ctx, *w.Audio)
	case w.Task != nil:
		return d.pipe.ProcessTask(ctx, *w.Task)
	default:
		return nil, errors.Errorf("work for job %s has no submission", w.Job.JobID)
	}
}
