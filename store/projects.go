// ABOUTME: Project rows: creation, lookup, listing by owner, and status changes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const projectColumns = `id, owner_id, name, status, config, generated_at, created_at, updated_at`

// CreateProject creates a draft project owned by ownerID.
func (s *Store) CreateProject(ctx context.Context, ownerID, name string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, errors.New("project name is required")
	}
	now := time.Now().UTC()
	p := Project{ID: newID(), OwnerID: ownerID, Name: name, Status: ProjectDraft, CreatedAt: now, UpdatedAt: now}
	_, err := s.exec(ctx, s.db,
		`INSERT INTO projects (id, owner_id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, string(p.Status), formatTime(now), formatTime(now),
	)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// GetProject loads a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

// ListProjects returns ownerID's projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = ? ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetProjectStatus updates a project's status.
func (s *Store) SetProjectStatus(ctx context.Context, id string, status ProjectStatus) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (Project, error) {
	var (
		p                 Project
		status            string
		config, generated sql.NullString
		created, updated  string
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &status, &config, &generated, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, err
		}
		return Project{}, fmt.Errorf("scan project: %w", err)
	}
	p.Status = ProjectStatus(status)
	if config.Valid && config.String != "" {
		p.Config = []byte(config.String)
	}
	p.GeneratedAt = parseNullTime(generated)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}
