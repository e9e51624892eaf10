package obsidian

import (
	"sort"
	"strings"

	"github.com/obsidianops/vaultsync/internal/task"
)

// Render converts a stored task back into a single Tasks Plugin line.
//
// The output is the inverse of ParseLine at field level: checkbox,
// title, priority glyph (omitted for none), due date, completion date
// (only for done tasks that have one), then tags sorted
// lexicographically so re-exports are deterministic.
//
// Render never emits an #id/ token; durable tokens are honored on
// parse when a human has added one, but position remains the primary
// identity for exported lines.
func Render(t *task.Task) string {
	parts := make([]string, 0, 6)

	if t.Status == task.StatusDone {
		parts = append(parts, "- [x]")
	} else {
		parts = append(parts, "- [ ]")
	}

	if title := strings.TrimSpace(t.Title); title != "" {
		parts = append(parts, title)
	}

	if glyph := GlyphFor(t.Priority); glyph != "" {
		parts = append(parts, glyph)
	}

	if t.DueDate != nil {
		parts = append(parts, "📅 "+t.DueDate.Format(task.DateLayout))
	}

	if t.Status == task.StatusDone && t.CompletedAt != nil {
		parts = append(parts, "✅ "+t.CompletedAt.Format(task.DateLayout))
	}

	tags := task.NormalizeTags(t.Tags)
	sort.Strings(tags)
	for _, tag := range tags {
		parts = append(parts, "#"+tag)
	}

	return strings.Join(parts, " ")
}
