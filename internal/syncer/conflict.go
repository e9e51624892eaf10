package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/obsidianops/vaultsync/internal/store"
	"github.com/obsidianops/vaultsync/internal/task"
)

// ErrAlreadyResolved is returned when a resolution targets a conflict
// that already has one; resolutions are never overwritten.
var ErrAlreadyResolved = errors.New("conflict is already resolved")

// applyResolution applies a resolution decision to a conflict.
//
// "obsidian" overwrites the stored task's mutable fields from the vault
// snapshot. "database" leaves the store untouched; the next export pass
// pushes database state back to the file. "skip" changes neither side;
// the conflict is re-detected on the next pass if both sides remain
// divergent.
func (e *Engine) applyResolution(ctx context.Context, c *task.SyncConflict, resolution task.Resolution) error {
	if !resolution.Valid() {
		return fmt.Errorf("invalid resolution %q (want obsidian, database or skip)", resolution)
	}

	if resolution != task.ResolveObsidian || c.TaskID == "" {
		return nil
	}

	stored, err := e.store.GetTask(ctx, c.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The task vanished since the conflict was recorded;
			// nothing left to overwrite.
			return nil
		}
		return fmt.Errorf("failed to load conflicted task: %w", err)
	}

	stored.Title = c.Obsidian.Title
	stored.Status = c.Obsidian.Status
	stored.Priority = c.Obsidian.Priority
	stored.DueDate = c.Obsidian.DueDate
	stored.Tags = c.Obsidian.Tags
	stored.ObsidianPath = c.ObsidianPath
	stored.ObsidianLine = c.ObsidianLine
	stored.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateTask(ctx, stored); err != nil {
		return fmt.Errorf("failed to apply obsidian version: %w", err)
	}
	return nil
}

// ResolveConflict applies a caller-supplied resolution to a persisted
// conflict and marks it resolved.
func (e *Engine) ResolveConflict(ctx context.Context, conflictID string, resolution task.Resolution) (*task.SyncConflict, error) {
	c, err := e.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if c.Resolved() {
		return nil, fmt.Errorf("conflict %s: %w", conflictID, ErrAlreadyResolved)
	}

	if err := e.applyResolution(ctx, c, resolution); err != nil {
		return nil, err
	}
	if err := e.store.MarkResolved(ctx, c.ID, resolution, "user"); err != nil {
		return nil, err
	}

	e.logger.Printf("Resolved conflict %s as %s", c.ID, resolution)
	return e.store.GetConflict(ctx, c.ID)
}

// ResolveAllConflicts applies one resolution to every open conflict of
// a sync pass and returns how many were resolved.
func (e *Engine) ResolveAllConflicts(ctx context.Context, syncLogID string, resolution task.Resolution) (int, error) {
	conflicts, err := e.store.UnresolvedBySyncLog(ctx, syncLogID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range conflicts {
		if err := e.applyResolution(ctx, c, resolution); err != nil {
			return count, err
		}
		if err := e.store.MarkResolved(ctx, c.ID, resolution, "auto"); err != nil {
			return count, err
		}
		count++
	}

	e.logger.Printf("Resolved %d conflicts for sync %s as %s", count, syncLogID, resolution)
	return count, nil
}

// Conflicts lists conflicts: those of one sync pass when syncLogID is
// given, otherwise all unresolved conflicts.
func (e *Engine) Conflicts(ctx context.Context, syncLogID string) ([]*task.SyncConflict, error) {
	if syncLogID != "" {
		return e.store.ConflictsBySyncLog(ctx, syncLogID)
	}
	return e.store.UnresolvedConflicts(ctx)
}
