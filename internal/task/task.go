// Package task provides the shared data structures for vaultsync.
package task

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the two-valued task state mirroring the markdown checkbox.
type Status string

const (
	StatusTodo Status = "todo"
	StatusDone Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusDone
}

// Priority is the task priority level from the Tasks Plugin glyphs.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityNone:     "none",
	PriorityLow:      "low",
	PriorityMedium:   "medium",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

// String returns the lowercase priority name ("none", "low", ...).
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "none"
}

// ParsePriority converts a stored priority name back to a Priority.
// Unknown names map to PriorityNone.
func ParsePriority(name string) Priority {
	for p, n := range priorityNames {
		if n == strings.ToLower(name) {
			return p
		}
	}
	return PriorityNone
}

// DateLayout is the on-disk and in-markdown date format (ISO calendar date).
const DateLayout = "2006-01-02"

// Task represents a stored task row owned by the persistence layer.
// Fields mirror the sync contract: the engine reads and writes whole
// tasks keyed by ID, one row at a time.
type Task struct {
	ID    string
	Title string

	Status   Status
	Priority Priority

	// DueDate and CompletedAt are calendar dates (midnight UTC).
	DueDate     *time.Time
	CompletedAt *time.Time

	// Tags are lowercase, deduplicated, without the leading '#'.
	Tags []string

	ProjectID string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Obsidian linkage, set when the task originated from or was
	// exported to a vault line.
	ObsidianPath string
	ObsidianLine int

	// SyncToken is the durable identity token (#id/<token>) when one is
	// present in the linked line. Empty for positional identity.
	SyncToken string
}

// Validate checks that the task has the fields the store requires.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}

// HasObsidianSource reports whether the task is linked to a vault line.
func (t *Task) HasObsidianSource() bool {
	return t.ObsidianPath != "" && t.ObsidianLine > 0
}

// NormalizeTags lowercases, deduplicates and sorts a tag list.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TagsEqual compares two tag lists as sets.
func TagsEqual(a, b []string) bool {
	na, nb := NormalizeTags(a), NormalizeTags(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

// DatesEqual compares two optional calendar dates by day.
func DatesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format(DateLayout) == b.Format(DateLayout)
}

// Project is a named container for tasks.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
