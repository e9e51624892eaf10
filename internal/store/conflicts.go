package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianops/vaultsync/internal/task"
)

const conflictColumns = `id, sync_log_id, task_id, obsidian_path, obsidian_line, raw_line,
	obs_title, obs_status, obs_priority, obs_due_date, obs_tags, obs_modified,
	db_title, db_status, db_priority, db_due_date, db_tags, db_modified,
	resolution, resolved_at, resolved_by, created_at`

// CreateConflict persists a detected divergence. The ID is assigned
// here when empty.
func (s *Store) CreateConflict(ctx context.Context, c *task.SyncConflict) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	obsTags, err := json.Marshal(task.NormalizeTags(c.Obsidian.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal obsidian tags: %w", err)
	}
	dbTags, err := json.Marshal(task.NormalizeTags(c.Database.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal database tags: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO sync_conflicts (
		id, sync_log_id, task_id, obsidian_path, obsidian_line, raw_line,
		obs_title, obs_status, obs_priority, obs_due_date, obs_tags, obs_modified,
		db_title, db_status, db_priority, db_due_date, db_tags, db_modified,
		created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.SyncLogID,
		nullIfEmpty(c.TaskID),
		c.ObsidianPath,
		c.ObsidianLine,
		nullIfEmpty(c.RawLine),
		c.Obsidian.Title,
		string(c.Obsidian.Status),
		c.Obsidian.Priority.String(),
		timeToNullString(c.Obsidian.DueDate, task.DateLayout),
		string(obsTags),
		c.Obsidian.Modified.Format(time.RFC3339),
		nullIfEmpty(c.Database.Title),
		nullIfEmpty(string(c.Database.Status)),
		nullIfEmpty(c.Database.Priority.String()),
		timeToNullString(c.Database.DueDate, task.DateLayout),
		string(dbTags),
		nullIfZeroTime(c.Database.Modified),
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create conflict: %w", err)
	}
	return nil
}

// GetConflict retrieves a conflict by ID.
func (s *Store) GetConflict(ctx context.Context, id string) (*task.SyncConflict, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts WHERE id = ?`, id)
	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conflict %s: %w", id, err)
	}
	return c, nil
}

// UnresolvedConflicts returns all open conflicts, newest first.
func (s *Store) UnresolvedConflicts(ctx context.Context) ([]*task.SyncConflict, error) {
	return s.queryConflicts(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts
		 WHERE resolution IS NULL ORDER BY created_at DESC`)
}

// ConflictsBySyncLog returns all conflicts recorded during one pass.
func (s *Store) ConflictsBySyncLog(ctx context.Context, syncLogID string) ([]*task.SyncConflict, error) {
	return s.queryConflicts(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts
		 WHERE sync_log_id = ? ORDER BY created_at ASC`, syncLogID)
}

// UnresolvedBySyncLog returns the open conflicts of one pass.
func (s *Store) UnresolvedBySyncLog(ctx context.Context, syncLogID string) ([]*task.SyncConflict, error) {
	return s.queryConflicts(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts
		 WHERE sync_log_id = ? AND resolution IS NULL ORDER BY created_at ASC`, syncLogID)
}

// CountUnresolved counts all open conflicts.
func (s *Store) CountUnresolved(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_conflicts WHERE resolution IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved conflicts: %w", err)
	}
	return count, nil
}

// MarkResolved records a resolution on an open conflict. Resolving an
// already-resolved conflict is an error; resolutions are never silently
// overwritten.
func (s *Store) MarkResolved(ctx context.Context, id string, resolution task.Resolution, resolvedBy string) error {
	if !resolution.Valid() {
		return fmt.Errorf("invalid resolution %q", resolution)
	}

	res, err := s.conn.ExecContext(ctx, `
	UPDATE sync_conflicts SET resolution = ?, resolved_at = ?, resolved_by = ?
	WHERE id = ? AND resolution IS NULL`,
		string(resolution),
		time.Now().UTC().Format(time.RFC3339),
		resolvedBy,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conflict %s not found or already resolved", id)
	}
	return nil
}

func nullIfZeroTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func (s *Store) queryConflicts(ctx context.Context, query string, args ...interface{}) ([]*task.SyncConflict, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*task.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflicts: %w", err)
	}
	return conflicts, nil
}

func scanConflict(row rowScanner) (*task.SyncConflict, error) {
	var c task.SyncConflict
	var taskID, rawLine sql.NullString
	var obsStatus, obsPriority, obsModified, createdAt string
	var obsDue, obsTags sql.NullString
	var dbTitle, dbStatus, dbPriority, dbDue, dbTags, dbModified sql.NullString
	var resolution, resolvedAt, resolvedBy sql.NullString

	err := row.Scan(
		&c.ID,
		&c.SyncLogID,
		&taskID,
		&c.ObsidianPath,
		&c.ObsidianLine,
		&rawLine,
		&c.Obsidian.Title,
		&obsStatus,
		&obsPriority,
		&obsDue,
		&obsTags,
		&obsModified,
		&dbTitle,
		&dbStatus,
		&dbPriority,
		&dbDue,
		&dbTags,
		&dbModified,
		&resolution,
		&resolvedAt,
		&resolvedBy,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	c.TaskID = taskID.String
	c.RawLine = rawLine.String

	c.Obsidian.Status = task.Status(obsStatus)
	c.Obsidian.Priority = task.ParsePriority(obsPriority)
	c.Obsidian.DueDate = nullStringToTime(obsDue, task.DateLayout)
	if ts, err := time.Parse(time.RFC3339, obsModified); err == nil {
		c.Obsidian.Modified = ts
	}

	c.Database.Title = dbTitle.String
	c.Database.Status = task.Status(dbStatus.String)
	c.Database.Priority = task.ParsePriority(dbPriority.String)
	c.Database.DueDate = nullStringToTime(dbDue, task.DateLayout)
	if dbModified.Valid {
		if ts, err := time.Parse(time.RFC3339, dbModified.String); err == nil {
			c.Database.Modified = ts
		}
	}

	for _, pair := range []struct {
		src  sql.NullString
		dest *[]string
	}{
		{obsTags, &c.Obsidian.Tags},
		{dbTags, &c.Database.Tags},
	} {
		if pair.src.Valid && pair.src.String != "" && pair.src.String != "null" {
			if err := json.Unmarshal([]byte(pair.src.String), pair.dest); err != nil {
				return nil, fmt.Errorf("failed to unmarshal conflict tags: %w", err)
			}
		}
	}

	c.Resolution = task.Resolution(resolution.String)
	c.ResolvedAt = nullStringToTime(resolvedAt, time.RFC3339)
	c.ResolvedBy = resolvedBy.String
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		c.CreatedAt = ts
	}

	return &c, nil
}
