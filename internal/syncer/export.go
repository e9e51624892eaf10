package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/obsidianops/vaultsync/internal/obsidian"
	"github.com/obsidianops/vaultsync/internal/store"
	"github.com/obsidianops/vaultsync/internal/task"
	"github.com/obsidianops/vaultsync/internal/vault"
)

// ExportOptions narrows an export pass.
type ExportOptions struct {
	// Project restricts the export to one project by name.
	Project string

	// OutputPath overrides the configured target file for tasks with
	// no vault linkage. Relative paths resolve against the vault root.
	OutputPath string

	// DueBefore keeps only tasks due on or before the given day.
	DueBefore *time.Time
}

// Export runs one export pass: every stored task with a linked vault
// line is rendered and written back in place; unlinked tasks are
// appended to the output file, grouped by project. Non-task lines are
// never touched.
func (e *Engine) Export(ctx context.Context, opts ExportOptions) (*task.SyncLog, error) {
	filter := store.ListFilter{DueBefore: opts.DueBefore}

	if opts.Project != "" {
		project, err := e.store.FindProjectByName(ctx, opts.Project)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("project %q: %w", opts.Project, store.ErrNotFound)
		}
		filter.ProjectID = project.ID
	}

	outputPath := e.outputPath(opts.OutputPath)

	syncLog, err := e.beginPass(ctx, task.SyncExport, outputPath)
	if err != nil {
		return nil, err
	}
	tally := &passTally{}

	tasks, err := e.store.ListTasks(ctx, filter)
	if err != nil {
		return e.endPass(ctx, syncLog, tally, err)
	}

	e.logger.Printf("Export pass %s: %d tasks", syncLog.ID, len(tasks))

	var unlinked []*task.Task
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return e.endPass(ctx, syncLog, tally, err)
		}

		if !t.HasObsidianSource() {
			unlinked = append(unlinked, t)
			continue
		}

		path := filepath.Join(e.cfg.VaultPath, t.ObsidianPath)
		line := obsidian.Render(t)
		if err := vault.ReplaceLine(path, t.ObsidianLine, line, e.fileTimeout); err != nil {
			tally.skipped++
			tally.addError("task %s: %v", t.ID, err)
			continue
		}
		tally.updated++
	}

	e.exportUnlinked(ctx, unlinked, outputPath, tally)

	return e.endPass(ctx, syncLog, tally, nil)
}

// outputPath resolves the target file for unlinked tasks, or returns
// "" when there is none.
func (e *Engine) outputPath(override string) string {
	path := override
	if path == "" {
		path = e.cfg.ExportPath
	}
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.cfg.VaultPath, path)
	}
	return path
}

// exportUnlinked appends tasks with no vault linkage to the output
// file, grouped under project headings. Without a target they are
// skipped and counted.
func (e *Engine) exportUnlinked(ctx context.Context, unlinked []*task.Task, outputPath string, tally *passTally) {
	if len(unlinked) == 0 {
		return
	}
	if outputPath == "" {
		tally.skipped += len(unlinked)
		tally.addError("%d tasks have no vault linkage and no output target", len(unlinked))
		return
	}

	projectNames := make(map[string]string)
	var lines []string
	currentProject := ""

	for _, t := range unlinked {
		name, ok := projectNames[t.ProjectID]
		if !ok {
			project, err := e.store.GetProject(ctx, t.ProjectID)
			if err != nil {
				name = "Unknown"
			} else {
				name = project.Name
			}
			projectNames[t.ProjectID] = name
		}

		if name != currentProject {
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, "## "+name, "")
			currentProject = name
		}
		lines = append(lines, obsidian.Render(t))
	}

	if err := vault.AppendLines(outputPath, lines, e.fileTimeout); err != nil {
		tally.skipped += len(unlinked)
		tally.addError("failed to write %s: %v", outputPath, err)
		return
	}
	tally.updated += len(unlinked)
}
