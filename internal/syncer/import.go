package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/obsidianops/vaultsync/internal/config"
	"github.com/obsidianops/vaultsync/internal/obsidian"
	"github.com/obsidianops/vaultsync/internal/task"
	"github.com/obsidianops/vaultsync/internal/vault"
)

// Import runs one import pass: every task occurrence in the configured
// sources (or in sourceFiles, when given) is parsed, matched against
// the store and applied.
//
// Per-file and per-task failures are accumulated into the returned
// sync log; the pass only fails outright on cancellation or when the
// store itself becomes unreachable.
func (e *Engine) Import(ctx context.Context, sourceFiles []string) (*task.SyncLog, error) {
	syncLog, err := e.beginPass(ctx, task.SyncImport, strings.Join(sourceFiles, ","))
	if err != nil {
		return nil, err
	}
	tally := &passTally{}

	lastSync, err := e.lastSyncAt(ctx)
	if err != nil {
		return e.endPass(ctx, syncLog, tally, err)
	}

	files, err := e.collectFiles(ctx, sourceFiles, tally)
	if err != nil {
		return e.endPass(ctx, syncLog, tally, err)
	}

	e.logger.Printf("Import pass %s: %d files", syncLog.ID, len(files))

	// claimed enforces the one-task-per-pass identity invariant:
	// when two occurrences resolve to the same stored task, the last
	// one wins and the earlier is reported as a duplicate.
	claimed := make(map[string]string)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return e.endPass(ctx, syncLog, tally, err)
		}
		e.importFile(ctx, file, lastSync, syncLog.ID, claimed, tally)
	}

	return e.endPass(ctx, syncLog, tally, nil)
}

// collectFiles scans the configured glob sources, or reads the
// explicitly named files.
func (e *Engine) collectFiles(ctx context.Context, sourceFiles []string, tally *passTally) ([]vault.File, error) {
	if len(sourceFiles) == 0 {
		files, failures, err := e.scanner.Scan(ctx, e.cfg.SyncSources)
		if err != nil {
			return nil, err
		}
		for _, f := range failures {
			tally.addError("%s: %v", f.Path, f.Err)
		}
		return files, nil
	}

	var files []vault.File
	for _, path := range sourceFiles {
		file, err := e.scanner.ScanSingle(path)
		if err != nil {
			tally.addError("%s: %v", path, err)
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

// importFile processes every task occurrence in one scanned file.
func (e *Engine) importFile(ctx context.Context, file vault.File, lastSync *time.Time, syncLogID string, claimed map[string]string, tally *passTally) {
	section := ""

	for i, line := range file.Lines {
		if heading, ok := obsidian.MatchHeading(line); ok {
			section = heading
			continue
		}

		parsed := obsidian.ParseLine(line)
		if parsed == nil {
			continue
		}

		parsed.SourcePath = file.RelPath
		parsed.LineNumber = i + 1
		parsed.Section = section
		parsed.FileModified = file.Modified

		e.importOccurrence(ctx, parsed, lastSync, syncLogID, claimed, tally)
	}
}

// importOccurrence resolves, matches, classifies and applies one
// occurrence.
func (e *Engine) importOccurrence(ctx context.Context, parsed *obsidian.ParsedTask, lastSync *time.Time, syncLogID string, claimed map[string]string, tally *passTally) {
	position := fmt.Sprintf("%s:%d", parsed.SourcePath, parsed.LineNumber)

	if parsed.Title == "" {
		tally.skipped++
		tally.addError("%s: task has no title after stripping metadata", position)
		return
	}

	projectName := e.resolver.Resolve(parsed)
	project, err := e.store.GetOrCreateProject(ctx, projectName)
	if err != nil {
		tally.skipped++
		tally.addError("%s: %v", position, err)
		return
	}

	stored, diags, err := e.matcher.Match(ctx, parsed, project.ID)
	if err != nil {
		tally.skipped++
		tally.addError("%s: %v", position, err)
		return
	}
	for _, d := range diags {
		tally.skipped++
		tally.addError("%s", d)
	}

	if stored != nil {
		if prev, ok := claimed[stored.ID]; ok {
			// Last occurrence wins; the earlier one is a duplicate.
			tally.skipped++
			tally.addError("%s: duplicate of task %s (earlier occurrence at %s superseded)",
				position, stored.ID, prev)
		}
		claimed[stored.ID] = position
	}

	switch Classify(parsed, stored, lastSync) {
	case New:
		created := &task.Task{
			Title:        parsed.Title,
			Status:       parsed.Status(),
			Priority:     parsed.Priority,
			DueDate:      parsed.DueDate,
			CompletedAt:  parsed.CompletedAt,
			Tags:         parsed.Tags,
			ProjectID:    project.ID,
			ObsidianPath: parsed.SourcePath,
			ObsidianLine: parsed.LineNumber,
			SyncToken:    parsed.IDToken,
		}
		if err := e.store.CreateTask(ctx, created); err != nil {
			tally.skipped++
			tally.addError("%s: %v", position, err)
			return
		}
		claimed[created.ID] = position
		tally.created++

	case Unchanged:
		tally.skipped++
		// An unchanged task may still have moved to another line;
		// refresh the linkage without touching the change timestamp.
		if stored.ObsidianPath != parsed.SourcePath || stored.ObsidianLine != parsed.LineNumber {
			stored.ObsidianPath = parsed.SourcePath
			stored.ObsidianLine = parsed.LineNumber
			if err := e.store.UpdateTask(ctx, stored); err != nil {
				tally.addError("%s: failed to refresh linkage: %v", position, err)
			}
		}

	case ObsidianUpdated:
		stored.Title = parsed.Title
		stored.Status = parsed.Status()
		stored.Priority = parsed.Priority
		stored.DueDate = parsed.DueDate
		stored.CompletedAt = parsed.CompletedAt
		stored.Tags = parsed.Tags
		stored.ObsidianPath = parsed.SourcePath
		stored.ObsidianLine = parsed.LineNumber
		if parsed.IDToken != "" {
			stored.SyncToken = parsed.IDToken
		}
		stored.UpdatedAt = time.Now().UTC()
		if err := e.store.UpdateTask(ctx, stored); err != nil {
			tally.skipped++
			tally.addError("%s: %v", position, err)
			return
		}
		tally.updated++

	case DatabaseUpdated:
		// The database is newer; the next export pass pushes it to
		// the file.
		tally.skipped++

	case Conflict:
		e.handleConflict(ctx, parsed, stored, syncLogID, tally)
	}
}

// handleConflict records a divergence, or resolves it immediately when
// the configured policy is not manual.
func (e *Engine) handleConflict(ctx context.Context, parsed *obsidian.ParsedTask, stored *task.Task, syncLogID string, tally *passTally) {
	conflict := &task.SyncConflict{
		SyncLogID:    syncLogID,
		TaskID:       stored.ID,
		ObsidianPath: parsed.SourcePath,
		ObsidianLine: parsed.LineNumber,
		RawLine:      parsed.RawText,
		Obsidian: task.Snapshot{
			Title:    parsed.Title,
			Status:   parsed.Status(),
			Priority: parsed.Priority,
			DueDate:  parsed.DueDate,
			Tags:     parsed.Tags,
			Modified: parsed.FileModified,
		},
		Database: task.Snapshot{
			Title:    stored.Title,
			Status:   stored.Status,
			Priority: stored.Priority,
			DueDate:  stored.DueDate,
			Tags:     stored.Tags,
			Modified: stored.UpdatedAt,
		},
	}

	tally.conflicts++

	policy := e.cfg.DefaultConflictResolution
	if policy == "" || policy == config.ResolutionManual {
		if err := e.store.CreateConflict(ctx, conflict); err != nil {
			tally.addError("%s:%d: failed to record conflict: %v",
				parsed.SourcePath, parsed.LineNumber, err)
		}
		return
	}

	// Auto policy: resolve immediately instead of persisting a row.
	resolution := task.Resolution(policy)
	if err := e.applyResolution(ctx, conflict, resolution); err != nil {
		tally.addError("%s:%d: failed to auto-resolve conflict: %v",
			parsed.SourcePath, parsed.LineNumber, err)
		return
	}
	e.logger.Printf("Auto-resolved conflict on task %s as %s", stored.ID, resolution)
}
