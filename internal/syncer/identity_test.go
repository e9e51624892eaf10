package syncer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/obsidianops/vaultsync/internal/obsidian"
	"github.com/obsidianops/vaultsync/internal/store"
	"github.com/obsidianops/vaultsync/internal/task"
)

func newTestMatcher(t *testing.T) (*Matcher, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return NewMatcher(st), st
}

func matcherTask(t *testing.T, st *store.Store, mutate func(*task.Task)) *task.Task {
	t.Helper()
	ctx := context.Background()
	project, err := st.GetOrCreateProject(ctx, "Work")
	if err != nil {
		t.Fatalf("GetOrCreateProject() failed: %v", err)
	}
	tk := &task.Task{Title: "Write report", Status: task.StatusTodo, ProjectID: project.ID}
	mutate(tk)
	if err := st.CreateTask(ctx, tk); err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tk
}

// TestMatch_TokenBeatsPosition tests that a durable #id/ token wins
// even when the line moved to a position linked to another task.
func TestMatch_TokenBeatsPosition(t *testing.T) {
	m, st := newTestMatcher(t)
	ctx := context.Background()

	tokened := matcherTask(t, st, func(tk *task.Task) {
		tk.SyncToken = "abc123"
		tk.ObsidianPath = "old.md"
		tk.ObsidianLine = 9
	})
	positioned := matcherTask(t, st, func(tk *task.Task) {
		tk.Title = "Other task"
		tk.ObsidianPath = "daily.md"
		tk.ObsidianLine = 3
	})

	parsed := &obsidian.ParsedTask{
		SourcePath: "daily.md",
		LineNumber: 3,
		Title:      "Write report",
		IDToken:    "abc123",
	}
	got, diags, err := m.Match(ctx, parsed, tokened.ProjectID)
	if err != nil {
		t.Fatalf("Match() failed: %v", err)
	}
	if got == nil || got.ID != tokened.ID {
		t.Errorf("Match() = %v, want the tokened task", got)
	}
	if got != nil && got.ID == positioned.ID {
		t.Error("position beat the durable token")
	}
	if len(diags) != 0 {
		t.Errorf("diags = %v, want none", diags)
	}
}

// TestMatch_PositionThenFingerprint tests the fallback chain.
func TestMatch_PositionThenFingerprint(t *testing.T) {
	m, st := newTestMatcher(t)
	ctx := context.Background()

	stored := matcherTask(t, st, func(tk *task.Task) {
		tk.ObsidianPath = "daily.md"
		tk.ObsidianLine = 3
	})

	// Same position.
	byPos, _, err := m.Match(ctx, &obsidian.ParsedTask{
		SourcePath: "daily.md", LineNumber: 3, Title: "Renamed already",
	}, stored.ProjectID)
	if err != nil {
		t.Fatalf("Match() failed: %v", err)
	}
	if byPos == nil || byPos.ID != stored.ID {
		t.Errorf("position match = %v", byPos)
	}

	// Line moved; the title fingerprint still finds it.
	byFp, _, err := m.Match(ctx, &obsidian.ParsedTask{
		SourcePath: "daily.md", LineNumber: 40, Title: "write  REPORT",
	}, stored.ProjectID)
	if err != nil {
		t.Fatalf("Match() failed: %v", err)
	}
	if byFp == nil || byFp.ID != stored.ID {
		t.Errorf("fingerprint match = %v", byFp)
	}

	// Nothing matches in another project.
	other, err := st.GetOrCreateProject(ctx, "Personal")
	if err != nil {
		t.Fatalf("GetOrCreateProject() failed: %v", err)
	}
	none, _, err := m.Match(ctx, &obsidian.ParsedTask{
		SourcePath: "other.md", LineNumber: 1, Title: "Write report",
	}, other.ID)
	if err != nil {
		t.Fatalf("Match() failed: %v", err)
	}
	if none != nil {
		t.Errorf("cross-project match = %v, want nil", none)
	}
}

// TestMatch_AmbiguousFingerprintDiagnosed tests that duplicate stored
// titles surface as diagnostics with a single winner.
func TestMatch_AmbiguousFingerprintDiagnosed(t *testing.T) {
	m, st := newTestMatcher(t)
	ctx := context.Background()

	a := matcherTask(t, st, func(tk *task.Task) {})
	b := matcherTask(t, st, func(tk *task.Task) {})
	_ = a

	got, diags, err := m.Match(ctx, &obsidian.ParsedTask{
		SourcePath: "daily.md", LineNumber: 1, Title: "Write report",
	}, b.ProjectID)
	if err != nil {
		t.Fatalf("Match() failed: %v", err)
	}
	if got == nil {
		t.Fatal("Match() = nil, want a winner")
	}
	if len(diags) != 1 {
		t.Errorf("diags = %v, want exactly one ambiguity report", diags)
	}
}
