package obsidian

import (
	"reflect"
	"testing"
	"time"

	"github.com/obsidianops/vaultsync/internal/task"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.ParseInLocation(task.DateLayout, s, time.UTC)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return &d
}

// TestParseLine_Full tests a fully decorated task line.
func TestParseLine_Full(t *testing.T) {
	p := ParseLine("- [ ] Write report 🔼 📅 2026-01-25 #work")
	if p == nil {
		t.Fatal("ParseLine() returned nil for a task line")
	}

	if p.Done {
		t.Error("Done = true, want false")
	}
	if p.Title != "Write report" {
		t.Errorf("Title = %q, want %q", p.Title, "Write report")
	}
	if p.Priority != task.PriorityMedium {
		t.Errorf("Priority = %v, want Medium", p.Priority)
	}
	if p.DueDate == nil || !p.DueDate.Equal(*date(t, "2026-01-25")) {
		t.Errorf("DueDate = %v, want 2026-01-25", p.DueDate)
	}
	if !reflect.DeepEqual(p.Tags, []string{"work"}) {
		t.Errorf("Tags = %v, want [work]", p.Tags)
	}
}

// TestParseLine_NotATask tests that non-checkbox lines return nil.
func TestParseLine_NotATask(t *testing.T) {
	lines := []string{
		"",
		"Just a paragraph.",
		"# Heading",
		"- bullet without checkbox",
		"* [ ] star list item",
		"  indented text - [ ] not at list position",
	}
	for _, line := range lines {
		if p := ParseLine(line); p != nil {
			t.Errorf("ParseLine(%q) = %+v, want nil", line, p)
		}
	}
}

// TestParseLine_Variants covers checkbox states, priorities and dates.
func TestParseLine_Variants(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		done     bool
		title    string
		priority task.Priority
		due      string
		done_at  string
		tags     []string
	}{
		{
			name:  "minimal todo",
			line:  "- [ ] Buy milk",
			title: "Buy milk",
		},
		{
			name:  "uppercase X done",
			line:  "- [X] Buy milk",
			done:  true,
			title: "Buy milk",
		},
		{
			name:  "indented under a list",
			line:  "    - [ ] Nested task",
			title: "Nested task",
		},
		{
			name:     "critical priority",
			line:     "- [ ] Fire drill 🔺",
			title:    "Fire drill",
			priority: task.PriorityCritical,
		},
		{
			name:     "completed with both dates",
			line:     "- [x] Ship release ⏫ 📅 2026-01-20 ✅ 2026-01-21 #release",
			done:     true,
			title:    "Ship release",
			priority: task.PriorityHigh,
			due:      "2026-01-20",
			done_at:  "2026-01-21",
			tags:     []string{"release"},
		},
		{
			name:  "tags lowercased and deduplicated",
			line:  "- [ ] Review #Work #work #URGENT",
			title: "Review",
			tags:  []string{"urgent", "work"},
		},
		{
			name:     "low priority glyph",
			line:     "- [ ] Someday 🔽",
			title:    "Someday",
			priority: task.PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseLine(tt.line)
			if p == nil {
				t.Fatalf("ParseLine(%q) = nil", tt.line)
			}
			if p.Done != tt.done {
				t.Errorf("Done = %v, want %v", p.Done, tt.done)
			}
			if p.Title != tt.title {
				t.Errorf("Title = %q, want %q", p.Title, tt.title)
			}
			if p.Priority != tt.priority {
				t.Errorf("Priority = %v, want %v", p.Priority, tt.priority)
			}
			if tt.due == "" {
				if p.DueDate != nil {
					t.Errorf("DueDate = %v, want nil", p.DueDate)
				}
			} else if p.DueDate == nil || !p.DueDate.Equal(*date(t, tt.due)) {
				t.Errorf("DueDate = %v, want %s", p.DueDate, tt.due)
			}
			if tt.done_at == "" {
				if p.CompletedAt != nil {
					t.Errorf("CompletedAt = %v, want nil", p.CompletedAt)
				}
			} else if p.CompletedAt == nil || !p.CompletedAt.Equal(*date(t, tt.done_at)) {
				t.Errorf("CompletedAt = %v, want %s", p.CompletedAt, tt.done_at)
			}
			if len(tt.tags) != 0 || len(p.Tags) != 0 {
				if !reflect.DeepEqual(p.Tags, tt.tags) {
					t.Errorf("Tags = %v, want %v", p.Tags, tt.tags)
				}
			}
		})
	}
}

// TestParseLine_MalformedTokensStayInTitle tests that unparseable
// decorations survive as title text instead of failing the parse.
func TestParseLine_MalformedTokensStayInTitle(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		title string
	}{
		{"invalid due date", "- [ ] Pay rent 📅 2026-13-45", "Pay rent 📅 2026-13-45"},
		{"date glyph without date", "- [ ] Pay rent 📅 tomorrow", "Pay rent 📅 tomorrow"},
		{"unknown glyph", "- [ ] Celebrate 🎉", "Celebrate 🎉"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseLine(tt.line)
			if p == nil {
				t.Fatalf("ParseLine(%q) = nil", tt.line)
			}
			if p.Title != tt.title {
				t.Errorf("Title = %q, want %q", p.Title, tt.title)
			}
			if p.DueDate != nil {
				t.Errorf("DueDate = %v, want nil", p.DueDate)
			}
		})
	}
}

// TestParseLine_SecondPriorityGlyphIgnored tests that only the first
// glyph is honored and later ones remain title text.
func TestParseLine_SecondPriorityGlyphIgnored(t *testing.T) {
	p := ParseLine("- [ ] Tricky ⏫ 🔽 task")
	if p == nil {
		t.Fatal("ParseLine() = nil")
	}
	if p.Priority != task.PriorityHigh {
		t.Errorf("Priority = %v, want High", p.Priority)
	}
	if p.Title != "Tricky 🔽 task" {
		t.Errorf("Title = %q, want %q", p.Title, "Tricky 🔽 task")
	}
}

// TestParseLine_IDToken tests that #id/ tags become the identity token
// rather than a classification tag.
func TestParseLine_IDToken(t *testing.T) {
	p := ParseLine("- [ ] Tracked task #id/a1b2c3 #work")
	if p == nil {
		t.Fatal("ParseLine() = nil")
	}
	if p.IDToken != "a1b2c3" {
		t.Errorf("IDToken = %q, want %q", p.IDToken, "a1b2c3")
	}
	if !reflect.DeepEqual(p.Tags, []string{"work"}) {
		t.Errorf("Tags = %v, want [work]", p.Tags)
	}
}

// TestParseLine_EmptyTitle tests that a bare checkbox still parses; the
// caller decides whether to reject it.
func TestParseLine_EmptyTitle(t *testing.T) {
	p := ParseLine("- [ ] #misc")
	if p == nil {
		t.Fatal("ParseLine() = nil")
	}
	if p.Title != "" {
		t.Errorf("Title = %q, want empty", p.Title)
	}
}

// TestMatchHeading tests heading detection for section tracking.
func TestMatchHeading(t *testing.T) {
	tests := []struct {
		line    string
		heading string
		ok      bool
	}{
		{"# Top", "Top", true},
		{"### Deep section", "Deep section", true},
		{"####### too deep", "", false},
		{"#tag-not-heading", "", false},
		{"plain text", "", false},
	}
	for _, tt := range tests {
		heading, ok := MatchHeading(tt.line)
		if ok != tt.ok || heading != tt.heading {
			t.Errorf("MatchHeading(%q) = (%q, %v), want (%q, %v)",
				tt.line, heading, ok, tt.heading, tt.ok)
		}
	}
}
