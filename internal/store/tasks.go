package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianops/vaultsync/internal/task"
)

const taskColumns = `id, title, status, priority, due_date, completed_at, tags,
	project_id, created_at, updated_at, obsidian_path, obsidian_line, sync_token, fingerprint`

// GetOrCreateProject looks up a project by name, creating it when
// missing. Lookup is case-insensitive; the stored name keeps the case
// of its first appearance.
func (s *Store) GetOrCreateProject(ctx context.Context, name string) (*task.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	p := &task.Project{}
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE name = ? COLLATE NOCASE`, name,
	).Scan(&p.ID, &p.Name, &timeScanner{&p.CreatedAt})
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query project %q: %w", name, err)
	}

	p = &task.Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create project %q: %w", name, err)
	}
	return p, nil
}

// FindProjectByName looks up a project by name without creating it.
// Returns nil, nil when no project matches.
func (s *Store) FindProjectByName(ctx context.Context, name string) (*task.Project, error) {
	p := &task.Project{}
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE name = ? COLLATE NOCASE`, name,
	).Scan(&p.ID, &p.Name, &timeScanner{&p.CreatedAt})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project %q: %w", name, err)
	}
	return p, nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*task.Project, error) {
	p := &task.Project{}
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &timeScanner{&p.CreatedAt})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project %s: %w", id, err)
	}
	return p, nil
}

// CreateTask inserts a new task. The ID is assigned here when empty.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tagsJSON, err := json.Marshal(task.NormalizeTags(t.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO tasks (`+taskColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Title,
		string(t.Status),
		t.Priority.String(),
		timeToNullString(t.DueDate, task.DateLayout),
		timeToNullString(t.CompletedAt, task.DateLayout),
		string(tagsJSON),
		t.ProjectID,
		t.CreatedAt.Format(time.RFC3339),
		t.UpdatedAt.Format(time.RFC3339),
		nullIfEmpty(t.ObsidianPath),
		nullIfZero(t.ObsidianLine),
		nullIfEmpty(t.SyncToken),
		nullIfEmpty(Fingerprint(t.Title)),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTask rewrites a task's mutable fields. UpdatedAt is taken from
// the struct so callers control the change timestamp.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tagsJSON, err := json.Marshal(task.NormalizeTags(t.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
	UPDATE tasks SET
		title = ?, status = ?, priority = ?, due_date = ?, completed_at = ?,
		tags = ?, project_id = ?, updated_at = ?,
		obsidian_path = ?, obsidian_line = ?, sync_token = ?, fingerprint = ?
	WHERE id = ?`,
		t.Title,
		string(t.Status),
		t.Priority.String(),
		timeToNullString(t.DueDate, task.DateLayout),
		timeToNullString(t.CompletedAt, task.DateLayout),
		string(tagsJSON),
		t.ProjectID,
		t.UpdatedAt.Format(time.RFC3339),
		nullIfEmpty(t.ObsidianPath),
		nullIfZero(t.ObsidianLine),
		nullIfEmpty(t.SyncToken),
		nullIfEmpty(Fingerprint(t.Title)),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// GetTask retrieves a single task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task %s: %w", id, err)
	}
	return t, nil
}

// FindByToken finds the task carrying a durable sync token.
// Returns nil, nil when no task matches.
func (s *Store) FindByToken(ctx context.Context, token string) (*task.Task, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE sync_token = ?`, token)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task by token: %w", err)
	}
	return t, nil
}

// FindBySource finds tasks linked to a specific vault line. More than
// one match is a data-integrity anomaly the caller must resolve;
// results are ordered most recently updated first to make that
// resolution deterministic.
func (s *Store) FindBySource(ctx context.Context, path string, line int) ([]*task.Task, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE obsidian_path = ? AND obsidian_line = ?
		 ORDER BY updated_at DESC`, path, line)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by source: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FindByFingerprint finds tasks in a project whose normalized title
// matches the given fingerprint, most recently updated first.
func (s *Store) FindByFingerprint(ctx context.Context, projectID, fingerprint string) ([]*task.Task, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE project_id = ? AND fingerprint = ?
		 ORDER BY updated_at DESC`, projectID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by fingerprint: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListFilter configures ListTasks.
type ListFilter struct {
	// ProjectID filters to one project (empty = all).
	ProjectID string
	// DueBefore keeps only tasks with a due date on or before the day.
	DueBefore *time.Time
	// LinkedOnly keeps only tasks with an obsidian source.
	LinkedOnly bool
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListTasks retrieves tasks matching the filter, ordered by project
// then creation time so exports group deterministically.
func (s *Store) ListTasks(ctx context.Context, filter ListFilter) ([]*task.Task, error) {
	var conditions []string
	var args []interface{}

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, "due_date IS NOT NULL AND due_date <= ?")
		args = append(args, filter.DueBefore.Format(task.DateLayout))
	}
	if filter.LinkedOnly {
		conditions = append(conditions, "obsidian_path IS NOT NULL AND obsidian_line IS NOT NULL")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY project_id ASC, created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var t task.Task
	var status, priority string
	var dueDate, completedAt, obsPath, token, fingerprint sql.NullString
	var obsLine sql.NullInt64
	var tagsJSON sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&t.ID,
		&t.Title,
		&status,
		&priority,
		&dueDate,
		&completedAt,
		&tagsJSON,
		&t.ProjectID,
		&createdAt,
		&updatedAt,
		&obsPath,
		&obsLine,
		&token,
		&fingerprint,
	)
	if err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	t.Priority = task.ParsePriority(priority)
	t.DueDate = nullStringToTime(dueDate, task.DateLayout)
	t.CompletedAt = nullStringToTime(completedAt, task.DateLayout)
	t.ObsidianPath = obsPath.String
	t.ObsidianLine = int(obsLine.Int64)
	t.SyncToken = token.String

	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		t.UpdatedAt = ts
	}

	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	} else {
		t.Tags = []string{}
	}

	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*task.Task, error) {
	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIfZero(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

// timeScanner scans an RFC3339 column into a time.Time.
type timeScanner struct {
	t *time.Time
}

func (ts *timeScanner) Scan(v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string timestamp, got %T", v)
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	*ts.t = parsed
	return nil
}
