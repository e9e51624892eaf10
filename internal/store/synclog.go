package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianops/vaultsync/internal/task"
)

const syncLogColumns = `id, sync_type, status, source_file, tasks_created,
	tasks_updated, tasks_skipped, conflicts_count, error_message, started_at, completed_at`

// StartSync creates a new sync log in the in_progress state.
func (s *Store) StartSync(ctx context.Context, syncType task.SyncType, sourceFile string) (*task.SyncLog, error) {
	log := &task.SyncLog{
		ID:         uuid.NewString(),
		SyncType:   syncType,
		Status:     task.SyncInProgress,
		SourceFile: sourceFile,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO sync_logs (id, sync_type, status, source_file, started_at)
	VALUES (?, ?, ?, ?, ?)`,
		log.ID,
		string(log.SyncType),
		string(log.Status),
		nullIfEmpty(log.SourceFile),
		log.StartedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync log: %w", err)
	}
	return log, nil
}

// CompleteSync finalizes an in-progress sync log as completed with its
// statistics. Finalizing the same log twice is an error: the history is
// append-only once a pass ends.
func (s *Store) CompleteSync(ctx context.Context, id string, created, updated, skipped, conflicts int, errorMessage string) error {
	return s.finalizeSync(ctx, id, task.SyncCompleted, created, updated, skipped, conflicts, errorMessage)
}

// FailSync finalizes an in-progress sync log as failed.
func (s *Store) FailSync(ctx context.Context, id string, created, updated, skipped, conflicts int, errorMessage string) error {
	return s.finalizeSync(ctx, id, task.SyncFailed, created, updated, skipped, conflicts, errorMessage)
}

func (s *Store) finalizeSync(ctx context.Context, id string, status task.SyncStatus, created, updated, skipped, conflicts int, errorMessage string) error {
	res, err := s.conn.ExecContext(ctx, `
	UPDATE sync_logs SET
		status = ?, tasks_created = ?, tasks_updated = ?, tasks_skipped = ?,
		conflicts_count = ?, error_message = ?, completed_at = ?
	WHERE id = ? AND status = ?`,
		string(status),
		created, updated, skipped, conflicts,
		nullIfEmpty(errorMessage),
		time.Now().UTC().Format(time.RFC3339),
		id,
		string(task.SyncInProgress),
	)
	if err != nil {
		return fmt.Errorf("failed to finalize sync log %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sync log %s is not in progress (already finalized?)", id)
	}
	return nil
}

// GetSyncLog retrieves a sync log by ID.
func (s *Store) GetSyncLog(ctx context.Context, id string) (*task.SyncLog, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+syncLogColumns+` FROM sync_logs WHERE id = ?`, id)
	log, err := scanSyncLog(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log %s: %w", id, err)
	}
	return log, nil
}

// GetInProgress returns the currently running sync log, or nil.
func (s *Store) GetInProgress(ctx context.Context) (*task.SyncLog, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+syncLogColumns+` FROM sync_logs WHERE status = ? LIMIT 1`,
		string(task.SyncInProgress))
	log, err := scanSyncLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query in-progress sync: %w", err)
	}
	return log, nil
}

// LatestCompleted returns the most recent completed sync log, or nil
// when no pass has ever completed. Its completion time is the
// best-effort last_sync_at reference for conflict classification.
func (s *Store) LatestCompleted(ctx context.Context) (*task.SyncLog, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+syncLogColumns+` FROM sync_logs
		 WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		string(task.SyncCompleted))
	log, err := scanSyncLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sync: %w", err)
	}
	return log, nil
}

// Latest returns the most recent sync log regardless of status, or nil.
func (s *Store) Latest(ctx context.Context) (*task.SyncLog, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+syncLogColumns+` FROM sync_logs ORDER BY started_at DESC LIMIT 1`)
	log, err := scanSyncLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sync: %w", err)
	}
	return log, nil
}

// RecentSyncLogs returns up to limit sync logs, newest first.
func (s *Store) RecentSyncLogs(ctx context.Context, limit int) ([]*task.SyncLog, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+syncLogColumns+` FROM sync_logs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync history: %w", err)
	}
	defer rows.Close()

	var logs []*task.SyncLog
	for rows.Next() {
		log, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync logs: %w", err)
	}
	return logs, nil
}

// CountSyncLogs returns the total number of recorded sync passes.
func (s *Store) CountSyncLogs(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_logs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync logs: %w", err)
	}
	return count, nil
}

func scanSyncLog(row rowScanner) (*task.SyncLog, error) {
	var log task.SyncLog
	var syncType, status, startedAt string
	var sourceFile, errorMessage, completedAt sql.NullString

	err := row.Scan(
		&log.ID,
		&syncType,
		&status,
		&sourceFile,
		&log.TasksCreated,
		&log.TasksUpdated,
		&log.TasksSkipped,
		&log.ConflictsCount,
		&errorMessage,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	log.SyncType = task.SyncType(syncType)
	log.Status = task.SyncStatus(status)
	log.SourceFile = sourceFile.String
	log.ErrorMessage = errorMessage.String
	if ts, err := time.Parse(time.RFC3339, startedAt); err == nil {
		log.StartedAt = ts
	}
	log.CompletedAt = nullStringToTime(completedAt, time.RFC3339)

	return &log, nil
}
