// ABOUTME: Persistence adapter that forwards a generation's events while collecting its files.
// ABOUTME: When the stream ends it commits the version as complete or failed, retrying with backoff.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/llm"
	"github.com/2389-research/sitegen/store"
)

// GenerationStore is the datastore surface used to commit generations.
type GenerationStore interface {
	CompleteGeneration(ctx context.Context, p store.CompleteParams) (store.CommitResult, error)
	FailGeneration(ctx context.Context, p store.FailParams) error
	VersionStatus(ctx context.Context, id string) (store.VersionStatus, error)
}

// Publisher receives the file set of each committed version.
type Publisher interface {
	Publish(ctx context.Context, projectID string, version int, files []store.File) error
}

// Run identifies the version a tracked stream commits into.
type Run struct {
	VersionID     string
	VersionNumber int
	ProjectID     string
	UserID        string
	Config        json.RawMessage
	StartedAt     time.Time
}

// Outcome is the result of a tracked run's commit.
type Outcome struct {
	Run       Run
	Succeeded bool
	Files     int
	Err       error
}

// Adapter commits generation streams to a GenerationStore.
type Adapter struct {
	store     GenerationStore
	publisher Publisher
	retry     llm.RetryPolicy
	onCommit  func(Outcome)
	buffer    int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPublisher publishes committed versions after a successful commit.
func WithPublisher(p Publisher) Option {
	return func(a *Adapter) { a.publisher = p }
}

// WithRetryPolicy replaces the commit retry policy.
func WithRetryPolicy(p llm.RetryPolicy) Option {
	return func(a *Adapter) { a.retry = p }
}

// WithOnCommit registers a callback invoked after each commit attempt
// finishes and before the output channel closes.
func WithOnCommit(fn func(Outcome)) Option {
	return func(a *Adapter) { a.onCommit = fn }
}

// NewAdapter creates an Adapter.
func NewAdapter(s GenerationStore, opts ...Option) *Adapter {
	a := &Adapter{
		store: s,
		retry: llm.RetryPolicy{
			MaxRetries:        4,
			BaseDelay:         250 * time.Millisecond,
			MaxDelay:          5 * time.Second,
			BackoffMultiplier: 2,
			Jitter:            true,
		},
		buffer: 64,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// collector accumulates what the commit needs from the stream.
type collector struct {
	files      []store.File
	failure    *genevent.Error
	terminated bool
}

func (c *collector) observe(e genevent.Event) {
	switch ev := e.(type) {
	case genevent.ComponentComplete:
		c.files = append(c.files, store.File{
			Path:    ev.File.Path,
			Content: ev.File.Content,
			Type:    FileType(ev.File.Path),
			Section: SectionType(ev.File.Path),
		})
	case genevent.GenerationComplete:
		c.terminated = true
	case genevent.Error:
		c.terminated = true
		c.failure = &ev
	}
}

// Track forwards every event from in, in order, and commits the run once in
// closes. The returned channel closes only after the commit finished, so a
// consumer that reads to the end observes committed state. Callers must
// drain it.
func (a *Adapter) Track(ctx context.Context, run Run, in <-chan genevent.Event) <-chan genevent.Event {
	out := make(chan genevent.Event, a.buffer)
	go func() {
		defer close(out)
		var c collector
		for e := range in {
			if !c.terminated {
				c.observe(e)
			}
			out <- e
		}
		outcome := a.commit(ctx, run, &c)
		if a.onCommit != nil {
			a.onCommit(outcome)
		}
	}()
	return out
}

func (a *Adapter) commit(ctx context.Context, run Run, c *collector) Outcome {
	elapsed := time.Since(run.StartedAt)
	outcome := Outcome{Run: run}

	var op func() error
	if c.failure != nil || !c.terminated {
		msg := "generation stream ended without a terminal event"
		if c.failure != nil {
			msg = string(c.failure.Stage) + ": " + c.failure.Message
		}
		op = func() error {
			return a.store.FailGeneration(ctx, store.FailParams{
				VersionID: run.VersionID,
				ProjectID: run.ProjectID,
				Message:   msg,
				Elapsed:   elapsed,
			})
		}
	} else {
		outcome.Files = len(c.files)
		op = func() error {
			// Trust what was written, not what this process believes happened.
			status, err := a.store.VersionStatus(ctx, run.VersionID)
			if err != nil {
				return err
			}
			if status == store.VersionComplete {
				return nil
			}
			_, err = a.store.CompleteGeneration(ctx, store.CompleteParams{
				VersionID: run.VersionID,
				ProjectID: run.ProjectID,
				UserID:    run.UserID,
				Files:     c.files,
				Config:    run.Config,
				Elapsed:   elapsed,
			})
			return err
		}
	}

	policy := a.retry
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		log.Printf("component=persist action=commit_retry version=%s attempt=%d delay=%s err=%v", run.VersionID, attempt+1, delay, err)
	}
	err := llm.Retry(ctx, policy, retryableCommit, op)
	if err != nil {
		log.Printf("component=persist action=commit_failed version=%s project=%s err=%v", run.VersionID, run.ProjectID, err)
		outcome.Err = err
		return outcome
	}

	if c.failure != nil || !c.terminated {
		log.Printf("component=persist action=version_failed version=%s project=%s elapsed=%s", run.VersionID, run.ProjectID, elapsed.Round(time.Millisecond))
		return outcome
	}

	outcome.Succeeded = true
	log.Printf("component=persist action=version_complete version=%s project=%s files=%d elapsed=%s", run.VersionID, run.ProjectID, len(c.files), elapsed.Round(time.Millisecond))
	a.publish(ctx, run.ProjectID, run.VersionNumber, c.files)
	return outcome
}

func (a *Adapter) publish(ctx context.Context, projectID string, version int, files []store.File) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, projectID, version, files); err != nil {
		log.Printf("component=persist action=publish_failed project=%s version=%d err=%v", projectID, version, err)
	}
}

func retryableCommit(err error) bool {
	return !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrVersionClosed)
}
