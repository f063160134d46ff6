package skill

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by stores.
var (
	// ErrNotFound indicates no skill exists under the requested name.
	ErrNotFound = errors.New("skill: not found")

	// ErrConflict indicates a save would overwrite an existing skill
	// without Overwrite set.
	ErrConflict = errors.New("skill: name already exists")

	// ErrEmptyName indicates a skill with no name.
	ErrEmptyName = errors.New("skill: name is empty")

	// ErrEmptyCode indicates a skill with no code body.
	ErrEmptyCode = errors.New("skill: code is empty")
)

// Skill is a named, reusable code snippet with usage statistics.
type Skill struct {
	// Name identifies the skill. Unique within a store.
	Name string `json:"name"`

	// Language is the interpreter the code runs under.
	Language string `json:"language"`

	// Code is the source body, stored verbatim.
	Code string `json:"code"`

	// Description is an optional free-text summary used by search.
	Description string `json:"description,omitempty"`

	// CreatedAt is when the skill was first saved.
	CreatedAt time.Time `json:"createdAt"`

	// LastUsedAt is when the skill was last replayed; zero if never.
	LastUsedAt time.Time `json:"lastUsedAt,omitempty"`

	// ExecutionCount and SuccessCount track replay outcomes.
	ExecutionCount int64 `json:"executionCount"`
	SuccessCount   int64 `json:"successCount"`
}

// Validate checks that the skill can be saved.
func (s *Skill) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}
	if s.Code == "" {
		return ErrEmptyCode
	}
	if s.Language == "" {
		return errors.New("skill: language is empty")
	}
	return nil
}

// Summary is the listing view of a skill. It omits the code body so
// listings stay small regardless of snippet size.
type Summary struct {
	Name           string    `json:"name"`
	Language       string    `json:"language"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUsedAt     time.Time `json:"lastUsedAt,omitempty"`
	ExecutionCount int64     `json:"executionCount"`
	SuccessCount   int64     `json:"successCount"`
}

// SaveOptions modify Save behavior.
type SaveOptions struct {
	// Overwrite replaces an existing skill of the same name instead of
	// failing with ErrConflict. The replacement keeps the original
	// CreatedAt and usage counters.
	Overwrite bool
}

// Hit is a search result with its relevance score.
type Hit struct {
	Summary
	Score float64 `json:"score"`
}

// Store persists skills.
//
// Contract:
// - Concurrency: Implementations must be safe for concurrent use.
// - Context: All methods must honor cancellation and deadlines.
// - Errors: Load and Delete return ErrNotFound for unknown names; Save
//   returns ErrConflict on a duplicate name without Overwrite.
// - Ownership: Implementations must not retain or mutate the provided
//   skill after Save returns.
type Store interface {
	// Save persists a skill under its name.
	Save(ctx context.Context, s Skill, opts SaveOptions) error

	// Load returns the complete skill, code included.
	Load(ctx context.Context, name string) (Skill, error)

	// List returns summaries of all skills ordered by name.
	List(ctx context.Context) ([]Summary, error)

	// Search ranks skills against a keyword over name and description.
	Search(ctx context.Context, keyword string) ([]Hit, error)

	// Delete removes a skill.
	Delete(ctx context.Context, name string) error

	// RecordUse updates usage statistics after a replay.
	RecordUse(ctx context.Context, name string, success bool) error

	// Close releases store resources.
	Close() error
}

// conflictErr wraps ErrConflict with the offending name.
func conflictErr(name string) error {
	return fmt.Errorf("%w: %q", ErrConflict, name)
}

// notFoundErr wraps ErrNotFound with the requested name.
func notFoundErr(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}
