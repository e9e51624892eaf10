package syncer

import (
	"time"

	"github.com/obsidianops/vaultsync/internal/obsidian"
	"github.com/obsidianops/vaultsync/internal/task"
)

// Change classifies one occurrence against its stored counterpart.
type Change int

const (
	// Unchanged: the stored task and the occurrence agree field by field.
	Unchanged Change = iota
	// New: no stored task matches the occurrence.
	New
	// ObsidianUpdated: fields differ and only the vault side changed
	// since the last completed sync.
	ObsidianUpdated
	// DatabaseUpdated: fields differ and only the database side changed.
	DatabaseUpdated
	// Conflict: fields differ and both sides changed, or the last sync
	// time is unknown.
	Conflict
)

func (c Change) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case New:
		return "new"
	case ObsidianUpdated:
		return "obsidian_updated"
	case DatabaseUpdated:
		return "database_updated"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

// Classify compares an occurrence with its stored task relative to the
// last successful sync time.
//
// The mtime-based "who changed" heuristic is best-effort: clock skew
// and filesystem mtime granularity can misattribute a change. When
// lastSyncAt is unknown the classifier refuses to guess a winner and
// reports Conflict.
func Classify(parsed *obsidian.ParsedTask, stored *task.Task, lastSyncAt *time.Time) Change {
	if stored == nil {
		return New
	}

	if fieldsEqual(parsed, stored) {
		return Unchanged
	}

	if lastSyncAt == nil {
		return Conflict
	}

	obsidianChanged := parsed.FileModified.After(*lastSyncAt)
	databaseChanged := stored.UpdatedAt.After(*lastSyncAt)

	switch {
	case obsidianChanged && databaseChanged:
		return Conflict
	case obsidianChanged:
		return ObsidianUpdated
	case databaseChanged:
		return DatabaseUpdated
	default:
		// Fields differ but neither timestamp moved; the timestamps
		// cannot be trusted to pick a side.
		return Conflict
	}
}

// fieldsEqual compares the sync-relevant fields of both sides.
func fieldsEqual(parsed *obsidian.ParsedTask, stored *task.Task) bool {
	return parsed.Title == stored.Title &&
		parsed.Status() == stored.Status &&
		parsed.Priority == stored.Priority &&
		task.DatesEqual(parsed.DueDate, stored.DueDate) &&
		task.TagsEqual(parsed.Tags, stored.Tags)
}
