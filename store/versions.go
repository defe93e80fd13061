// ABOUTME: Generation versions and their files: numbering, atomic completion, failure, and reads.
// ABOUTME: Completion inserts files, closes the version, updates the project and charges one credit in one transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

const versionColumns = `id, project_id, version_number, status, trigger_type, error, elapsed_ms, created_at, completed_at`

// ErrVersionClosed is returned when completing a version that already failed.
var ErrVersionClosed = errors.New("version is not generating")

// CreateVersion inserts the next version for projectID with status
// generating. Numbering is serialized per project in this process and
// protected across processes by the (project_id, version_number) unique
// key, with conflicts retried.
func (s *Store) CreateVersion(ctx context.Context, projectID string, trigger Trigger) (Version, error) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	var v Version
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		v, err = s.insertNextVersion(ctx, projectID, trigger)
		if err == nil || !isUniqueViolation(err) {
			break
		}
		log.Printf("component=store action=version_conflict project=%s attempt=%d", projectID, attempt+1)
	}
	return v, err
}

func (s *Store) insertNextVersion(ctx context.Context, projectID string, trigger Trigger) (Version, error) {
	now := time.Now().UTC()
	v := Version{
		ID:        newID(),
		ProjectID: projectID,
		Status:    VersionGenerating,
		Trigger:   trigger,
		CreatedAt: now,
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var maxNum sql.NullInt64
		if err := s.queryRow(ctx, tx,
			`SELECT MAX(version_number) FROM generation_versions WHERE project_id = ?`, projectID,
		).Scan(&maxNum); err != nil {
			return fmt.Errorf("read max version: %w", err)
		}
		v.Number = int(maxNum.Int64) + 1

		if _, err := s.exec(ctx, tx,
			`INSERT INTO generation_versions (id, project_id, version_number, status, trigger_type, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			v.ID, v.ProjectID, v.Number, string(v.Status), string(v.Trigger), formatTime(now),
		); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}

		if trigger == TriggerGeneration {
			if _, err := s.exec(ctx, tx,
				`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
				string(ProjectGenerating), formatTime(now), projectID,
			); err != nil {
				return fmt.Errorf("mark project generating: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Version{}, err
	}
	return v, nil
}

// CompleteParams describes a successful generation to commit.
type CompleteParams struct {
	VersionID string
	ProjectID string
	UserID    string
	Files     []File
	Config    json.RawMessage
	Elapsed   time.Duration
}

// CommitResult reports what CompleteGeneration did.
type CommitResult struct {
	// AlreadyComplete is set when the version was complete before the call
	// and nothing was written.
	AlreadyComplete bool
	// Charged is false when the owner had no credits left to decrement.
	Charged bool
}

// CompleteGeneration commits a finished generation in one transaction. It
// is a no-op when the version is already complete, so callers may retry it
// after an ambiguous failure.
func (s *Store) CompleteGeneration(ctx context.Context, p CompleteParams) (CommitResult, error) {
	var res CommitResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		status, err := s.versionStatus(ctx, tx, p.VersionID)
		if err != nil {
			return err
		}
		switch status {
		case VersionComplete:
			res.AlreadyComplete = true
			return nil
		case VersionError:
			return ErrVersionClosed
		}

		if err := s.insertFiles(ctx, tx, p.VersionID, p.Files); err != nil {
			return err
		}
		now := formatTime(time.Now())
		if _, err := s.exec(ctx, tx,
			`UPDATE generation_versions SET status = ?, elapsed_ms = ?, completed_at = ?, error = NULL WHERE id = ?`,
			string(VersionComplete), p.Elapsed.Milliseconds(), now, p.VersionID,
		); err != nil {
			return fmt.Errorf("complete version: %w", err)
		}

		var config sql.NullString
		if len(p.Config) > 0 {
			config = sql.NullString{String: string(p.Config), Valid: true}
		}
		if _, err := s.exec(ctx, tx,
			`UPDATE projects SET status = ?, config = ?, generated_at = ?, updated_at = ? WHERE id = ?`,
			string(ProjectGenerated), config, now, now, p.ProjectID,
		); err != nil {
			return fmt.Errorf("mark project generated: %w", err)
		}

		charged, err := s.exec(ctx, tx,
			`UPDATE users SET credits = credits - 1 WHERE id = ? AND credits > 0`, p.UserID)
		if err != nil {
			return fmt.Errorf("charge credit: %w", err)
		}
		n, _ := charged.RowsAffected()
		res.Charged = n == 1
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}
	if !res.AlreadyComplete && !res.Charged {
		log.Printf("component=store action=charge_skipped user=%s version=%s reason=no_credits", p.UserID, p.VersionID)
	}
	return res, nil
}

// FailParams describes a failed generation.
type FailParams struct {
	VersionID string
	ProjectID string
	Message   string
	Elapsed   time.Duration
}

// FailGeneration marks the version and its project as errored. No files are
// written. A version that already completed is left untouched.
func (s *Store) FailGeneration(ctx context.Context, p FailParams) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		status, err := s.versionStatus(ctx, tx, p.VersionID)
		if err != nil {
			return err
		}
		if status == VersionComplete {
			return nil
		}
		now := formatTime(time.Now())
		if _, err := s.exec(ctx, tx,
			`UPDATE generation_versions SET status = ?, error = ?, elapsed_ms = ?, completed_at = ? WHERE id = ?`,
			string(VersionError), nullString(p.Message), p.Elapsed.Milliseconds(), now, p.VersionID,
		); err != nil {
			return fmt.Errorf("fail version: %w", err)
		}
		if _, err := s.exec(ctx, tx,
			`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
			string(ProjectError), now, p.ProjectID,
		); err != nil {
			return fmt.Errorf("mark project error: %w", err)
		}
		return nil
	})
}

// CompleteEdit writes an edit's full file set and completes its version.
func (s *Store) CompleteEdit(ctx context.Context, versionID string, files []File, elapsed time.Duration) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		status, err := s.versionStatus(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if status != VersionGenerating {
			return ErrVersionClosed
		}
		if err := s.insertFiles(ctx, tx, versionID, files); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx,
			`UPDATE generation_versions SET status = ?, elapsed_ms = ?, completed_at = ? WHERE id = ?`,
			string(VersionComplete), elapsed.Milliseconds(), formatTime(time.Now()), versionID,
		); err != nil {
			return fmt.Errorf("complete edit version: %w", err)
		}
		return nil
	})
}

// DeleteVersion removes a version and any files written under it.
func (s *Store) DeleteVersion(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `DELETE FROM generated_files WHERE version_id = ?`, id); err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
		res, err := s.exec(ctx, tx, `DELETE FROM generation_versions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete version: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetVersion loads a version by ID.
func (s *Store) GetVersion(ctx context.Context, id string) (Version, error) {
	return s.oneVersion(s.queryRow(ctx, s.db,
		`SELECT `+versionColumns+` FROM generation_versions WHERE id = ?`, id))
}

// LatestVersion returns the highest-numbered version of a project.
func (s *Store) LatestVersion(ctx context.Context, projectID string) (Version, error) {
	return s.oneVersion(s.queryRow(ctx, s.db,
		`SELECT `+versionColumns+` FROM generation_versions WHERE project_id = ?
		 ORDER BY version_number DESC LIMIT 1`, projectID))
}

// VersionByNumber returns a project's version with the given number.
func (s *Store) VersionByNumber(ctx context.Context, projectID string, number int) (Version, error) {
	return s.oneVersion(s.queryRow(ctx, s.db,
		`SELECT `+versionColumns+` FROM generation_versions WHERE project_id = ? AND version_number = ?`,
		projectID, number))
}

// ListVersions returns a project's versions, newest first.
func (s *Store) ListVersions(ctx context.Context, projectID string) ([]Version, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT `+versionColumns+` FROM generation_versions WHERE project_id = ? ORDER BY version_number DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VersionFiles returns a version's files in the order they were written.
func (s *Store) VersionFiles(ctx context.Context, versionID string) ([]File, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT file_path, content, file_type, section_type FROM generated_files
		 WHERE version_id = ? ORDER BY file_order`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f := File{VersionID: versionID}
		var section sql.NullString
		if err := rows.Scan(&f.Path, &f.Content, &f.Type, &section); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.Section = section.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) insertFiles(ctx context.Context, tx *sql.Tx, versionID string, files []File) error {
	for i, f := range files {
		if _, err := s.exec(ctx, tx,
			`INSERT INTO generated_files (id, version_id, file_order, file_path, content, file_type, section_type)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			newID(), versionID, i, f.Path, f.Content, f.Type, nullString(f.Section),
		); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}
	return nil
}

func (s *Store) versionStatus(ctx context.Context, q querier, id string) (VersionStatus, error) {
	var status string
	err := s.queryRow(ctx, q, `SELECT status FROM generation_versions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read version status: %w", err)
	}
	return VersionStatus(status), nil
}

// VersionStatus reads the stored status of a version.
func (s *Store) VersionStatus(ctx context.Context, id string) (VersionStatus, error) {
	return s.versionStatus(ctx, s.db, id)
}

func (s *Store) oneVersion(row *sql.Row) (Version, error) {
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	return v, err
}

func scanVersion(row scanner) (Version, error) {
	var (
		v               Version
		status, trigger string
		errMsg, done    sql.NullString
		elapsed         sql.NullInt64
		created         string
	)
	if err := row.Scan(&v.ID, &v.ProjectID, &v.Number, &status, &trigger, &errMsg, &elapsed, &created, &done); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Version{}, err
		}
		return Version{}, fmt.Errorf("scan version: %w", err)
	}
	v.Status = VersionStatus(status)
	v.Trigger = Trigger(trigger)
	v.Error = errMsg.String
	v.ElapsedMS = elapsed.Int64
	v.CreatedAt = parseTime(created)
	v.CompletedAt = parseNullTime(done)
	return v, nil
}
