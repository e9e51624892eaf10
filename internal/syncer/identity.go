package syncer

import (
	"context"
	"fmt"

	"github.com/obsidianops/vaultsync/internal/obsidian"
	"github.com/obsidianops/vaultsync/internal/store"
	"github.com/obsidianops/vaultsync/internal/task"
)

// Matcher binds a parsed occurrence to its stored task, if one exists.
//
// Lookup order: durable #id/ token, then (source_path, line_number),
// then normalized-title fingerprint within the resolved project. No
// match means the occurrence is a candidate for creation.
type Matcher struct {
	store *store.Store
}

// NewMatcher creates a matcher over the store's read API.
func NewMatcher(st *store.Store) *Matcher {
	return &Matcher{store: st}
}

// Match finds the stored task for one occurrence, or nil when the
// occurrence is new.
//
// Multiple stored tasks matching the same occurrence is a
// data-integrity anomaly: the most recently updated wins and the rest
// are reported through diags so the orchestrator can count them as
// skipped.
func (m *Matcher) Match(ctx context.Context, parsed *obsidian.ParsedTask, projectID string) (*task.Task, []string, error) {
	if parsed.IDToken != "" {
		t, err := m.store.FindByToken(ctx, parsed.IDToken)
		if err != nil {
			return nil, nil, err
		}
		if t != nil {
			return t, nil, nil
		}
	}

	matches, err := m.store.FindBySource(ctx, parsed.SourcePath, parsed.LineNumber)
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		matches, err = m.store.FindByFingerprint(ctx, projectID, store.Fingerprint(parsed.Title))
		if err != nil {
			return nil, nil, err
		}
	}

	if len(matches) == 0 {
		return nil, nil, nil
	}

	// Results arrive most recently updated first.
	var diags []string
	for _, extra := range matches[1:] {
		diags = append(diags, fmt.Sprintf(
			"%s:%d: ambiguous identity, task %s shadowed by %s",
			parsed.SourcePath, parsed.LineNumber, extra.ID, matches[0].ID))
	}
	return matches[0], diags, nil
}
