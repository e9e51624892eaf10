package obsidian

import (
	"regexp"
	"strings"
	"time"

	"github.com/obsidianops/vaultsync/internal/task"
)

// Priority glyphs recognized by the Tasks Plugin.
var priorityGlyphs = []struct {
	glyph    string
	priority task.Priority
}{
	{"🔺", task.PriorityCritical},
	{"⏫", task.PriorityHigh},
	{"🔼", task.PriorityMedium},
	{"🔽", task.PriorityLow},
}

// GlyphFor returns the markdown glyph for a priority, empty for none.
func GlyphFor(p task.Priority) string {
	for _, g := range priorityGlyphs {
		if g.priority == p {
			return g.glyph
		}
	}
	return ""
}

var (
	checkboxPattern = regexp.MustCompile(`^(\s*)-\s*\[([ xX])\]\s*`)
	dueDatePattern  = regexp.MustCompile(`📅\s*(\d{4}-\d{2}-\d{2})`)
	doneDatePattern = regexp.MustCompile(`✅\s*(\d{4}-\d{2}-\d{2})`)

	// Tag words are letters, digits, '-', '_' plus '/' for namespaced
	// tags such as #project/Name and #id/ab12.
	tagPattern = regexp.MustCompile(`#([\pL\pN_\-/]+)`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// idTokenPrefix marks a tag as a durable identity token rather than a
// classification tag.
const idTokenPrefix = "id/"

// ParseLine parses a single markdown line as a task.
//
// Returns nil when the line is not a checkbox list item; that is not an
// error, and such lines must be left byte-for-byte untouched on export.
//
// Token extraction happens in fixed precedence, each matched token being
// removed from the remaining title text: checkbox, priority glyph, due
// date, completion date, tags. Malformed tokens (a second priority
// glyph, an invalid date after 📅) are tolerated and left in the title.
// An empty title after stripping is still returned; validating emptiness
// is the caller's job so partially malformed lines stay inspectable.
func ParseLine(line string) *ParsedTask {
	m := checkboxPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	parsed := &ParsedTask{
		RawText: line,
		Done:    strings.EqualFold(m[2], "x"),
	}

	rest := line[len(m[0]):]

	// Priority: only the first glyph is honored, later ones stay in
	// the title as plain text.
	rest, parsed.Priority = extractPriority(rest)

	rest, parsed.DueDate = extractDate(rest, dueDatePattern)

	// Completion date is parsed even when the box is unchecked so the
	// orchestrator can diagnose it.
	rest, parsed.CompletedAt = extractDate(rest, doneDatePattern)

	rest, parsed.Tags, parsed.IDToken = extractTags(rest)

	parsed.Title = strings.TrimSpace(whitespacePattern.ReplaceAllString(rest, " "))

	return parsed
}

// extractPriority removes the first priority glyph from s.
func extractPriority(s string) (string, task.Priority) {
	first := -1
	priority := task.PriorityNone
	var width int

	for _, g := range priorityGlyphs {
		idx := strings.Index(s, g.glyph)
		if idx >= 0 && (first < 0 || idx < first) {
			first = idx
			priority = g.priority
			width = len(g.glyph)
		}
	}

	if first < 0 {
		return s, task.PriorityNone
	}
	return s[:first] + s[first+width:], priority
}

// extractDate removes the first valid date token matching pattern.
// A glyph followed by text that is not a real calendar date is left
// in place.
func extractDate(s string, pattern *regexp.Regexp) (string, *time.Time) {
	for _, loc := range pattern.FindAllStringSubmatchIndex(s, -1) {
		text := s[loc[2]:loc[3]]
		t, err := time.ParseInLocation(task.DateLayout, text, time.UTC)
		if err != nil {
			continue
		}
		return s[:loc[0]] + s[loc[1]:], &t
	}
	return s, nil
}

// extractTags removes every #word token, returning the remaining text,
// the normalized tag set and the durable id token if one was present.
func extractTags(s string) (string, []string, string) {
	var tags []string
	var idToken string

	out := tagPattern.ReplaceAllStringFunc(s, func(match string) string {
		tag := strings.ToLower(strings.TrimPrefix(match, "#"))
		if strings.HasPrefix(tag, idTokenPrefix) {
			if idToken == "" {
				idToken = tag[len(idTokenPrefix):]
			}
			return ""
		}
		tags = append(tags, tag)
		return ""
	})

	return out, task.NormalizeTags(tags), idToken
}
