// ABOUTME: Row types for users, projects, generation versions, and generated files.
// ABOUTME: Versions are immutable once complete; files belong to exactly one version.
package store

import (
	"encoding/json"
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectGenerating ProjectStatus = "generating"
	ProjectGenerated  ProjectStatus = "generated"
	ProjectError      ProjectStatus = "error"
)

// VersionStatus is the lifecycle state of a version.
type VersionStatus string

const (
	VersionGenerating VersionStatus = "generating"
	VersionComplete   VersionStatus = "complete"
	VersionError      VersionStatus = "error"
)

// Trigger records what produced a version.
type Trigger string

const (
	TriggerGeneration Trigger = "generation"
	TriggerEdit       Trigger = "edit"
)

// User is an account that owns projects and spends credits on generations.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
}

// Project is a site being generated for a user.
type Project struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	Name        string          `json:"name"`
	Status      ProjectStatus   `json:"status"`
	Config      json.RawMessage `json:"config,omitempty"`
	GeneratedAt *time.Time      `json:"generatedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Version is one numbered snapshot of a project's files.
type Version struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId"`
	Number      int           `json:"versionNumber"`
	Status      VersionStatus `json:"status"`
	Trigger     Trigger       `json:"triggerType"`
	Error       string        `json:"error,omitempty"`
	ElapsedMS   int64         `json:"elapsedMs"`
	CreatedAt   time.Time     `json:"createdAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// File is one generated file.
type File struct {
	VersionID string `json:"versionId,omitempty"`
	Path      string `json:"filePath"`
	Content   string `json:"content"`
	Type      string `json:"fileType"`
	Section   string `json:"sectionType,omitempty"`
}
