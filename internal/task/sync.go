package task

import "time"

// SyncType distinguishes the two pass directions.
type SyncType string

const (
	SyncImport SyncType = "import"
	SyncExport SyncType = "export"
)

// SyncStatus is the lifecycle state of one sync pass.
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
)

// Resolution is a conflict resolution decision.
type Resolution string

const (
	ResolveObsidian Resolution = "obsidian"
	ResolveDatabase Resolution = "database"
	ResolveSkip     Resolution = "skip"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	return r == ResolveObsidian || r == ResolveDatabase || r == ResolveSkip
}

// SyncLog records one sync pass. It is created when the pass starts,
// mutated as the pass progresses, and finalized exactly once; the
// history is append-only afterward.
type SyncLog struct {
	ID       string
	SyncType SyncType
	Status   SyncStatus

	// SourceFile names explicit inputs (import) or the output target
	// (export), when either was given.
	SourceFile string

	TasksCreated   int
	TasksUpdated   int
	TasksSkipped   int
	ConflictsCount int

	ErrorMessage string

	StartedAt   time.Time
	CompletedAt *time.Time
}

// Snapshot is one side of a detected divergence: the sync-relevant
// fields plus when that side last changed.
type Snapshot struct {
	Title    string
	Status   Status
	Priority Priority
	DueDate  *time.Time
	Tags     []string
	Modified time.Time
}

// SyncConflict is one detected divergence between a vault line and a
// stored task. Unresolved conflicts persist across sync runs and are
// never silently overwritten.
type SyncConflict struct {
	ID        string
	SyncLogID string
	TaskID    string

	// Where in the vault the diverging occurrence lives.
	ObsidianPath string
	ObsidianLine int
	RawLine      string

	Obsidian Snapshot
	Database Snapshot

	// Resolution is empty while the conflict is open.
	Resolution Resolution
	ResolvedAt *time.Time
	ResolvedBy string // "user" or "auto"

	CreatedAt time.Time
}

// Resolved reports whether a resolution has been applied.
func (c *SyncConflict) Resolved() bool {
	return c.Resolution != ""
}
