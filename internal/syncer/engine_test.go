package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/obsidianops/vaultsync/internal/config"
	"github.com/obsidianops/vaultsync/internal/store"
	"github.com/obsidianops/vaultsync/internal/task"
)

// newTestEngine builds an engine over a temp vault and a fresh store.
func newTestEngine(t *testing.T) (*Engine, *store.Store, *config.Config) {
	t.Helper()

	cfg := config.Default()
	cfg.VaultPath = t.TempDir()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "tasks.db")
	cfg.TagMapping = []config.TagRule{{Tag: "work", Project: "Work"}}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	engine, err := NewEngine(cfg, st, nil)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return engine, st, cfg
}

// writeFile writes a vault file, creating parent directories.
func writeFile(t *testing.T, vault, rel, content string) string {
	t.Helper()
	path := filepath.Join(vault, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

// touchFuture pushes a file's mtime well past any sync completion time
// so the classifier sees an unambiguous vault-side change.
func touchFuture(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes() failed: %v", err)
	}
}

// TestImport_CreatesTasks tests the scan → parse → store pipeline.
func TestImport_CreatesTasks(t *testing.T) {
	engine, st, cfg := newTestEngine(t)
	ctx := context.Background()

	writeFile(t, cfg.VaultPath, "daily.md", `# Daily

- [ ] Write report 🔼 📅 2026-01-25 #work
- [x] Old chore ✅ 2026-01-10
Some prose in between.
`)

	l, err := engine.Import(ctx, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if l.Status != task.SyncCompleted {
		t.Errorf("Status = %v, want completed", l.Status)
	}
	if l.TasksCreated != 2 {
		t.Errorf("TasksCreated = %d, want 2", l.TasksCreated)
	}

	tasks, err := st.ListTasks(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	byTitle := make(map[string]*task.Task)
	for _, tk := range tasks {
		byTitle[tk.Title] = tk
	}

	report := byTitle["Write report"]
	if report == nil {
		t.Fatal("task 'Write report' not created")
	}
	if report.Priority != task.PriorityMedium {
		t.Errorf("Priority = %v, want Medium", report.Priority)
	}
	if report.ObsidianPath != "daily.md" || report.ObsidianLine != 3 {
		t.Errorf("source = %s:%d, want daily.md:3", report.ObsidianPath, report.ObsidianLine)
	}

	// The #work tag routes to the mapped project.
	project, err := st.GetProject(ctx, report.ProjectID)
	if err != nil {
		t.Fatalf("GetProject() failed: %v", err)
	}
	if project.Name != "Work" {
		t.Errorf("project = %q, want Work", project.Name)
	}

	chore := byTitle["Old chore"]
	if chore == nil {
		t.Fatal("task 'Old chore' not created")
	}
	if chore.Status != task.StatusDone {
		t.Errorf("Status = %v, want done", chore.Status)
	}
	if chore.CompletedAt == nil {
		t.Error("CompletedAt = nil")
	}
}

// TestImport_Idempotent tests that re-importing an unchanged vault
// creates and updates nothing.
func TestImport_Idempotent(t *testing.T) {
	engine, _, cfg := newTestEngine(t)
	ctx := context.Background()

	writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Stable task #work\n")

	if _, err := engine.Import(ctx, nil); err != nil {
		t.Fatalf("first Import() failed: %v", err)
	}

	l, err := engine.Import(ctx, nil)
	if err != nil {
		t.Fatalf("second Import() failed: %v", err)
	}
	if l.TasksCreated != 0 || l.TasksUpdated != 0 {
		t.Errorf("second pass created %d, updated %d; want 0, 0", l.TasksCreated, l.TasksUpdated)
	}
	if l.TasksSkipped != 1 {
		t.Errorf("TasksSkipped = %d, want 1", l.TasksSkipped)
	}
}

// TestImport_VaultEditUpdatesTask tests the ObsidianUpdated path.
func TestImport_VaultEditUpdatesTask(t *testing.T) {
	engine, st, cfg := newTestEngine(t)
	ctx := context.Background()

	path := writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Draft slides\n")
	if _, err := engine.Import(ctx, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	writeFile(t, cfg.VaultPath, "daily.md", "- [x] Draft slides ⏫\n")
	touchFuture(t, path)

	l, err := engine.Import(ctx, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if l.TasksUpdated != 1 {
		t.Errorf("TasksUpdated = %d, want 1", l.TasksUpdated)
	}
	if l.ConflictsCount != 0 {
		t.Errorf("ConflictsCount = %d, want 0", l.ConflictsCount)
	}

	tasks, _ := st.ListTasks(ctx, store.ListFilter{})
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Status != task.StatusDone || tasks[0].Priority != task.PriorityHigh {
		t.Errorf("task = %v/%v, want done/High", tasks[0].Status, tasks[0].Priority)
	}
}

// TestImport_BothSidesChangedIsConflict tests detection, persistence
// and resolution of a genuine two-sided conflict.
func TestImport_BothSidesChangedIsConflict(t *testing.T) {
	engine, st, cfg := newTestEngine(t)
	ctx := context.Background()

	path := writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Write report\n")
	if _, err := engine.Import(ctx, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	// Database side: rename the task after the first pass.
	tasks, _ := st.ListTasks(ctx, store.ListFilter{})
	stored := tasks[0]
	stored.Title = "Write the quarterly report"
	stored.UpdatedAt = time.Now().Add(time.Minute).UTC()
	if err := st.UpdateTask(ctx, stored); err != nil {
		t.Fatalf("UpdateTask() failed: %v", err)
	}

	// Vault side: raise the priority.
	writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Write report ⏫\n")
	touchFuture(t, path)

	l, err := engine.Import(ctx, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if l.ConflictsCount != 1 {
		t.Fatalf("ConflictsCount = %d, want 1", l.ConflictsCount)
	}

	conflicts, err := engine.Conflicts(ctx, l.ID)
	if err != nil {
		t.Fatalf("Conflicts() failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Obsidian.Title != "Write report" || c.Obsidian.Priority != task.PriorityHigh {
		t.Errorf("Obsidian snapshot = %+v", c.Obsidian)
	}
	if c.Database.Title != "Write the quarterly report" {
		t.Errorf("Database snapshot = %+v", c.Database)
	}

	// The stored task is untouched until someone decides.
	got, _ := st.GetTask(ctx, stored.ID)
	if got.Title != "Write the quarterly report" {
		t.Errorf("Title = %q, conflict mutated the task", got.Title)
	}

	// Resolving with obsidian reverts the stored title to the file's.
	resolved, err := engine.ResolveConflict(ctx, c.ID, task.ResolveObsidian)
	if err != nil {
		t.Fatalf("ResolveConflict() failed: %v", err)
	}
	if resolved.ResolvedBy != "user" {
		t.Errorf("ResolvedBy = %q, want user", resolved.ResolvedBy)
	}

	got, _ = st.GetTask(ctx, stored.ID)
	if got.Title != "Write report" {
		t.Errorf("Title = %q, want the vault version", got.Title)
	}
	if got.Priority != task.PriorityHigh {
		t.Errorf("Priority = %v, want High", got.Priority)
	}

	// A resolution is final.
	if _, err := engine.ResolveConflict(ctx, c.ID, task.ResolveDatabase); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second ResolveConflict() error = %v, want ErrAlreadyResolved", err)
	}
}

// TestImport_AutoResolutionPolicy tests that a non-manual policy
// resolves conflicts during the pass without persisting them.
func TestImport_AutoResolutionPolicy(t *testing.T) {
	engine, st, cfg := newTestEngine(t)
	cfg.DefaultConflictResolution = config.ResolutionObsidian
	ctx := context.Background()

	path := writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Write report\n")
	if _, err := engine.Import(ctx, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	tasks, _ := st.ListTasks(ctx, store.ListFilter{})
	stored := tasks[0]
	stored.Title = "Renamed in database"
	stored.UpdatedAt = time.Now().Add(time.Minute).UTC()
	if err := st.UpdateTask(ctx, stored); err != nil {
		t.Fatalf("UpdateTask() failed: %v", err)
	}

	writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Write report ⏫\n")
	touchFuture(t, path)

	l, err := engine.Import(ctx, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if l.ConflictsCount != 1 {
		t.Errorf("ConflictsCount = %d, want 1", l.ConflictsCount)
	}

	// Resolved inline, nothing left to resolve by hand.
	open, err := st.UnresolvedConflicts(ctx)
	if err != nil {
		t.Fatalf("UnresolvedConflicts() failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("got %d persisted conflicts, want 0", len(open))
	}

	got, _ := st.GetTask(ctx, stored.ID)
	if got.Title != "Write report" || got.Priority != task.PriorityHigh {
		t.Errorf("task = %q/%v, want vault version", got.Title, got.Priority)
	}
}

// TestImport_DuplicateOccurrences tests that two lines matching the
// same stored task leave exactly one winner.
func TestImport_DuplicateOccurrences(t *testing.T) {
	engine, st, cfg := newTestEngine(t)
	ctx := context.Background()

	writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Buy milk\n")
	if _, err := engine.Import(ctx, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	// The same title now appears twice; fingerprint matching maps both
	// occurrences to the one stored task.
	path := writeFile(t, cfg.VaultPath, "daily.md", "- [ ] Buy milk\n- [ ] Buy milk\n")
	touchFuture(t, path)

	l, err := engine.Import(ctx, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	tasks, _ := st.ListTasks(ctx, store.ListFilter{})
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	// Last occurrence wins the linkage.
	if tasks[0].ObsidianLine != 2 {
		t.Errorf("ObsidianLine = %d, want 2", tasks[0].ObsidianLine)
	}
	if !strings.Contains(l.ErrorMessage, "duplicate") {
		t.Errorf("ErrorMessage = %q, want a duplicate diagnostic", l.ErrorMessage)
	}
}

// TestImport_EmptyTitleSkipped tests that a bare checkbox is counted
// and diagnosed, not stored.
func TestImport_EmptyTitleSkipped(t *testing.T) {
	engine, st, cfg := newTestEngine(t)
	ctx := context.Background()

	writeFile(t, cfg.VaultPath, "daily.md", "- [ ] #work\n")

	l, err := engine.Import(ctx, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if l.TasksCreated != 0 || l.TasksSkipped != 1 {
		t.Errorf("created %d, skipped %d; want 0, 1", l.TasksCreated, l.TasksSkipped)
	}
	if !strings.Contains(l.ErrorMessage, "no title") {
		t.Errorf("ErrorMessage = %q", l.ErrorMessage)
	}

	tasks, _ := st.ListTasks(ctx, store.ListFilter{})
	if len(tasks) != 0 {
		t.Errorf("got %d tasks, want 0", len(tasks))
	}
}

// TestImport_ExplicitFiles tests the single-file scan path.
func TestImport_ExplicitFiles(t *testing.T) {
	engine, st, cfg := newTestEngine(t)
	ctx := context.Background()

	writeFile(t, cfg.VaultPath, "one.md", "- [ ] In scope\n")
	writeFile(t, cfg.VaultPath, "two.md", "- [ ] Out of scope\n")

	if _, err := engine.Import(ctx, []string{"one.md"}); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	tasks, _ := st.ListTasks(ctx, store.ListFilter{})
	if len(tasks) != 1 || tasks[0].Title != "In scope" {
		t.Errorf("tasks = %v, want just 'In scope'", tasks)
	}
}

// TestImport_SecondPassRejectedWhileRunning tests the single-pass gate.
func TestImport_SecondPassRejectedWhileRunning(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	engine.syncing.Store(true)
	defer engine.syncing.Store(false)

	if _, err := engine.Import(context.Background(), nil); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("Import() error = %v, want ErrSyncInProgress", err)
	}
}

// TestImport_CancelledContext tests that cancellation aborts without
// leaving a stuck in-progress sync behind.
func TestImport_CancelledContext(t *testing.T) {
	engine, st, cfg := newTestEngine(t)

	writeFile(t, cfg.VaultPath, "daily.md", "- [ ] task\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Import(ctx, nil); err == nil {
		t.Fatal("Import() succeeded with a cancelled context")
	}

	inProgress, err := st.GetInProgress(context.Background())
	if err != nil {
		t.Fatalf("GetInProgress() failed: %v", err)
	}
	if inProgress != nil {
		t.Errorf("sync log %s left in progress", inProgress.ID)
	}

	// The gate is released; a fresh pass runs fine.
	if _, err := engine.Import(context.Background(), nil); err != nil {
		t.Errorf("follow-up Import() failed: %v", err)
	}
}

// TestStatusAndHistory tests the reporting surface after some passes.
func TestStatusAndHistory(t *testing.T) {
	engine, _, cfg := newTestEngine(t)
	ctx := context.Background()

	writeFile(t, cfg.VaultPath, "daily.md", "- [ ] one\n")

	if _, err := engine.Import(ctx, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if _, err := engine.Import(ctx, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	info, err := engine.Status(ctx)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if info.IsSyncing {
		t.Error("IsSyncing = true after passes finished")
	}
	if info.TotalSyncs != 2 {
		t.Errorf("TotalSyncs = %d, want 2", info.TotalSyncs)
	}
	if info.LastSync == nil || info.LastSync.Status != task.SyncCompleted {
		t.Errorf("LastSync = %+v", info.LastSync)
	}

	logs, err := engine.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("History() = %d logs, want 2", len(logs))
	}
}
