package syncer

import (
	"testing"
	"time"

	"github.com/obsidianops/vaultsync/internal/obsidian"
	"github.com/obsidianops/vaultsync/internal/task"
)

// TestClassify covers the full truth table of the change classifier.
func TestClassify(t *testing.T) {
	lastSync := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	before := lastSync.Add(-time.Hour)
	after := lastSync.Add(time.Hour)

	stored := func(updatedAt time.Time) *task.Task {
		return &task.Task{
			Title:     "Write report",
			Status:    task.StatusTodo,
			Priority:  task.PriorityMedium,
			UpdatedAt: updatedAt,
		}
	}
	parsed := func(title string, modified time.Time) *obsidian.ParsedTask {
		return &obsidian.ParsedTask{
			Title:        title,
			Priority:     task.PriorityMedium,
			FileModified: modified,
		}
	}

	tests := []struct {
		name     string
		parsed   *obsidian.ParsedTask
		stored   *task.Task
		lastSync *time.Time
		want     Change
	}{
		{
			name:     "no stored task",
			parsed:   parsed("Write report", after),
			stored:   nil,
			lastSync: &lastSync,
			want:     New,
		},
		{
			name:     "fields agree",
			parsed:   parsed("Write report", after),
			stored:   stored(after),
			lastSync: &lastSync,
			want:     Unchanged,
		},
		{
			name:     "only vault changed",
			parsed:   parsed("Write the report", after),
			stored:   stored(before),
			lastSync: &lastSync,
			want:     ObsidianUpdated,
		},
		{
			name:     "only database changed",
			parsed:   parsed("Write the report", before),
			stored:   stored(after),
			lastSync: &lastSync,
			want:     DatabaseUpdated,
		},
		{
			name:     "both sides changed",
			parsed:   parsed("Write the report", after),
			stored:   stored(after),
			lastSync: &lastSync,
			want:     Conflict,
		},
		{
			name:     "no last sync to compare against",
			parsed:   parsed("Write the report", before),
			stored:   stored(before),
			lastSync: nil,
			want:     Conflict,
		},
		{
			name:     "fields differ but neither timestamp moved",
			parsed:   parsed("Write the report", before),
			stored:   stored(before),
			lastSync: &lastSync,
			want:     Conflict,
		},
		{
			name:     "fields agree even without last sync",
			parsed:   parsed("Write report", after),
			stored:   stored(after),
			lastSync: nil,
			want:     Unchanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.parsed, tt.stored, tt.lastSync); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestClassify_FieldSensitivity tests that each sync-relevant field
// participates in the comparison.
func TestClassify_FieldSensitivity(t *testing.T) {
	lastSync := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	after := lastSync.Add(time.Hour)
	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	base := &task.Task{
		Title:     "Write report",
		Status:    task.StatusTodo,
		Priority:  task.PriorityMedium,
		DueDate:   &due,
		Tags:      []string{"work"},
		UpdatedAt: lastSync.Add(-time.Hour),
	}

	mutations := []struct {
		name   string
		mutate func(*obsidian.ParsedTask)
	}{
		{"title", func(p *obsidian.ParsedTask) { p.Title = "Other" }},
		{"status", func(p *obsidian.ParsedTask) { p.Done = true }},
		{"priority", func(p *obsidian.ParsedTask) { p.Priority = task.PriorityHigh }},
		{"due date", func(p *obsidian.ParsedTask) { p.DueDate = nil }},
		{"tags", func(p *obsidian.ParsedTask) { p.Tags = []string{"home"} }},
	}

	for _, mt := range mutations {
		t.Run(mt.name, func(t *testing.T) {
			p := &obsidian.ParsedTask{
				Title:        base.Title,
				Priority:     base.Priority,
				DueDate:      base.DueDate,
				Tags:         base.Tags,
				FileModified: after,
			}
			if got := Classify(p, base, &lastSync); got != Unchanged {
				t.Fatalf("baseline Classify() = %v, want Unchanged", got)
			}
			mt.mutate(p)
			if got := Classify(p, base, &lastSync); got != ObsidianUpdated {
				t.Errorf("Classify() after %s change = %v, want ObsidianUpdated", mt.name, got)
			}
		})
	}
}
