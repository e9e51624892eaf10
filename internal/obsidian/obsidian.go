// Package obsidian parses and renders the Tasks Plugin markdown dialect.
//
// A task line looks like:
//
//	- [ ] Write report 🔼 📅 2026-01-25 #work
//	- [x] Ship release ⏫ 📅 2026-01-20 ✅ 2026-01-21 #release
//
// The parser turns one such line into a ParsedTask; the writer is the
// inverse transform. Lines that are not checkbox list items are never
// touched by either side.
package obsidian

import (
	"regexp"
	"time"

	"github.com/obsidianops/vaultsync/internal/task"
)

// ParsedTask is one task occurrence read from a vault file.
//
// It is created fresh on every scan pass, never persisted, and consumed
// immediately by identity matching and diff classification.
type ParsedTask struct {
	// Provenance, immutable after parse.
	SourcePath string
	LineNumber int
	RawText    string

	// Section is the nearest preceding markdown heading, if any.
	// Recorded for diagnostics; it does not affect sync semantics.
	Section string

	// FileModified is the source file's mtime at scan time.
	FileModified time.Time

	Done        bool
	Title       string
	Priority    task.Priority
	DueDate     *time.Time
	CompletedAt *time.Time

	// Tags are lowercase, deduplicated, '#' stripped, sorted.
	Tags []string

	// IDToken is the durable identity token from an #id/<token> tag,
	// empty when the line carries none.
	IDToken string
}

// Status maps the checkbox state to the stored status value.
func (p *ParsedTask) Status() task.Status {
	if p.Done {
		return task.StatusDone
	}
	return task.StatusTodo
}

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// MatchHeading returns the heading text if line is a markdown heading.
func MatchHeading(line string) (string, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[2], true
}
