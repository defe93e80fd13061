// ABOUTME: Commits visual-editor changes as a new edit version built from the latest completed version.
// ABOUTME: A failed write removes the half-created version so numbering never exposes an empty edit.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/2389-research/sitegen/merge"
	"github.com/2389-research/sitegen/store"
)

var (
	// ErrNoCompletedVersion is returned when the project has no version to edit.
	ErrNoCompletedVersion = errors.New("project has no completed version")
	// ErrVersionNotComplete is returned while the latest version is still
	// generating or failed.
	ErrVersionNotComplete = errors.New("latest version is not complete")
	// ErrNoChanges is returned for an empty change list.
	ErrNoChanges = errors.New("no changes to apply")
	// ErrPersistFailed wraps storage failures while writing the edit.
	ErrPersistFailed = errors.New("failed to persist edit")
)

// EditStore is the datastore surface used to commit edits.
type EditStore interface {
	LatestVersion(ctx context.Context, projectID string) (store.Version, error)
	CreateVersion(ctx context.Context, projectID string, trigger store.Trigger) (store.Version, error)
	CompleteEdit(ctx context.Context, versionID string, files []store.File, elapsed time.Duration) error
	DeleteVersion(ctx context.Context, id string) error
}

// FileSource loads the files of a version.
type FileSource interface {
	Files(ctx context.Context, v store.Version) ([]store.File, error)
}

// EditResult describes a committed edit.
type EditResult struct {
	VersionID     string   `json:"versionId"`
	VersionNumber int      `json:"versionNumber"`
	Applied       int      `json:"applied"`
	Skipped       int      `json:"skipped"`
	SkippedIDs    []string `json:"skippedIds,omitempty"`
}

// EditCommitter merges pending changes into the latest version's files.
type EditCommitter struct {
	store     EditStore
	files     FileSource
	merger    merge.Merger
	publisher Publisher
}

// NewEditCommitter creates an EditCommitter. publisher may be nil.
func NewEditCommitter(s EditStore, files FileSource, m merge.Merger, publisher Publisher) *EditCommitter {
	return &EditCommitter{store: s, files: files, merger: m, publisher: publisher}
}

// Apply merges changes into the latest completed version of projectID and
// stores the result as a new version with trigger edit.
func (c *EditCommitter) Apply(ctx context.Context, projectID string, changes []merge.PendingChange) (EditResult, error) {
	if len(changes) == 0 {
		return EditResult{}, ErrNoChanges
	}
	started := time.Now()

	latest, err := c.store.LatestVersion(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return EditResult{}, ErrNoCompletedVersion
	}
	if err != nil {
		return EditResult{}, fmt.Errorf("load latest version: %w", err)
	}
	if latest.Status != store.VersionComplete {
		return EditResult{}, fmt.Errorf("%w: version %d is %s", ErrVersionNotComplete, latest.Number, latest.Status)
	}

	current, err := c.files.Files(ctx, latest)
	if err != nil {
		return EditResult{}, fmt.Errorf("load files of version %d: %w", latest.Number, err)
	}

	merged, report := c.merger.Apply(toMergeFiles(current), changes)
	files := fromMergeFiles(merged, current)

	v, err := c.store.CreateVersion(ctx, projectID, store.TriggerEdit)
	if err != nil {
		return EditResult{}, fmt.Errorf("%w: create version: %v", ErrPersistFailed, err)
	}
	if err := c.store.CompleteEdit(ctx, v.ID, files, time.Since(started)); err != nil {
		if delErr := c.store.DeleteVersion(context.WithoutCancel(ctx), v.ID); delErr != nil {
			log.Printf("component=persist action=edit_cleanup_failed version=%s err=%v", v.ID, delErr)
		}
		return EditResult{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	log.Printf("component=persist action=edit_committed project=%s version=%d base=%d applied=%d skipped=%d",
		projectID, v.Number, latest.Number, report.Applied, report.Skipped)
	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, projectID, v.Number, files); err != nil {
			log.Printf("component=persist action=publish_failed project=%s version=%d err=%v", projectID, v.Number, err)
		}
	}

	return EditResult{
		VersionID:     v.ID,
		VersionNumber: v.Number,
		Applied:       report.Applied,
		Skipped:       report.Skipped,
		SkippedIDs:    report.SkippedIDs,
	}, nil
}

func toMergeFiles(files []store.File) []merge.File {
	out := make([]merge.File, len(files))
	for i, f := range files {
		out[i] = merge.File{Path: f.Path, Content: f.Content}
	}
	return out
}

// fromMergeFiles keeps the stored type and section of existing paths and
// classifies files the merger created.
func fromMergeFiles(merged []merge.File, original []store.File) []store.File {
	byPath := make(map[string]store.File, len(original))
	for _, f := range original {
		byPath[f.Path] = f
	}
	out := make([]store.File, len(merged))
	for i, f := range merged {
		prev, ok := byPath[f.Path]
		if !ok {
			prev = store.File{Type: FileType(f.Path), Section: SectionType(f.Path)}
		}
		out[i] = store.File{Path: f.Path, Content: f.Content, Type: prev.Type, Section: prev.Section}
	}
	return out
}
