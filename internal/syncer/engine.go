// Package syncer drives the bidirectional sync between an Obsidian
// vault and the task store.
//
// One Engine owns one vault and one store. A pass (import or export)
// runs the pipeline scan → parse → resolve project → match identity →
// classify → apply/record, accumulating per-item failures into the
// pass's sync log instead of aborting. Only a broken configuration or
// an unreachable store fails a pass outright.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/obsidianops/vaultsync/internal/config"
	"github.com/obsidianops/vaultsync/internal/store"
	"github.com/obsidianops/vaultsync/internal/task"
	"github.com/obsidianops/vaultsync/internal/vault"
)

// ErrSyncInProgress is returned when a pass is requested while another
// one is running. The caller must retry; requests are not queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// Engine orchestrates sync passes. Exactly one pass runs at a time.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	scanner  *vault.Scanner
	resolver *ProjectResolver
	matcher  *Matcher
	logger   *log.Logger

	// syncing gates pass execution; the store-side in_progress check
	// additionally guards against passes from other processes.
	syncing atomic.Bool

	fileTimeout time.Duration
}

// NewEngine creates an engine over a validated configuration and an
// open store.
//
// If logger is nil, a default logger writing to stderr is used.
func NewEngine(cfg *config.Config, st *store.Store, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync configuration: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}

	scanner, err := vault.NewScanner(cfg.VaultPath, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid sync configuration: %w", err)
	}

	return &Engine{
		cfg:         cfg,
		store:       st,
		scanner:     scanner,
		resolver:    NewProjectResolver(cfg),
		matcher:     NewMatcher(st),
		logger:      logger,
		fileTimeout: vault.DefaultFileTimeout,
	}, nil
}

// SetFileTimeout overrides the per-file read/write deadline.
func (e *Engine) SetFileTimeout(d time.Duration) {
	e.fileTimeout = d
	e.scanner.SetFileTimeout(d)
}

// beginPass acquires the single-pass gate and opens a sync log.
func (e *Engine) beginPass(ctx context.Context, syncType task.SyncType, sourceFile string) (*task.SyncLog, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}

	inProgress, err := e.store.GetInProgress(ctx)
	if err != nil {
		e.syncing.Store(false)
		return nil, fmt.Errorf("failed to check running syncs: %w", err)
	}
	if inProgress != nil {
		e.syncing.Store(false)
		return nil, fmt.Errorf("%w (sync log %s)", ErrSyncInProgress, inProgress.ID)
	}

	syncLog, err := e.store.StartSync(ctx, syncType, sourceFile)
	if err != nil {
		e.syncing.Store(false)
		return nil, fmt.Errorf("failed to start sync log: %w", err)
	}
	return syncLog, nil
}

// endPass finalizes the log and releases the gate. Partial progress is
// never rolled back: applied updates stand even when the pass failed.
func (e *Engine) endPass(ctx context.Context, syncLog *task.SyncLog, tally *passTally, passErr error) (*task.SyncLog, error) {
	defer e.syncing.Store(false)

	message := tally.errorMessage()
	if passErr != nil {
		if message != "" {
			message = passErr.Error() + "; " + message
		} else {
			message = passErr.Error()
		}
		if err := e.store.FailSync(ctx, syncLog.ID, tally.created, tally.updated, tally.skipped, tally.conflicts, message); err != nil {
			e.logger.Printf("WARNING: failed to finalize sync log %s: %v", syncLog.ID, err)
		}
	} else {
		if err := e.store.CompleteSync(ctx, syncLog.ID, tally.created, tally.updated, tally.skipped, tally.conflicts, message); err != nil {
			e.logger.Printf("WARNING: failed to finalize sync log %s: %v", syncLog.ID, err)
		}
	}

	final, err := e.store.GetSyncLog(ctx, syncLog.ID)
	if err != nil {
		return syncLog, passErr
	}
	return final, passErr
}

// lastSyncAt returns the completion time of the most recent completed
// pass, or nil when nothing ever completed.
func (e *Engine) lastSyncAt(ctx context.Context) (*time.Time, error) {
	latest, err := e.store.LatestCompleted(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.CompletedAt == nil {
		return nil, nil
	}
	return latest.CompletedAt, nil
}

// StatusInfo is the caller-visible sync state.
type StatusInfo struct {
	IsSyncing           bool
	UnresolvedConflicts int
	TotalSyncs          int
	LastSync            *task.SyncLog
}

// Status reports the current sync state.
func (e *Engine) Status(ctx context.Context) (*StatusInfo, error) {
	inProgress, err := e.store.GetInProgress(ctx)
	if err != nil {
		return nil, err
	}
	unresolved, err := e.store.CountUnresolved(ctx)
	if err != nil {
		return nil, err
	}
	total, err := e.store.CountSyncLogs(ctx)
	if err != nil {
		return nil, err
	}
	last, err := e.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	return &StatusInfo{
		IsSyncing:           e.syncing.Load() || inProgress != nil,
		UnresolvedConflicts: unresolved,
		TotalSyncs:          total,
		LastSync:            last,
	}, nil
}

// History returns recent sync passes, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]*task.SyncLog, error) {
	return e.store.RecentSyncLogs(ctx, limit)
}

// passTally accumulates counts and per-item diagnostics for one pass.
type passTally struct {
	created   int
	updated   int
	skipped   int
	conflicts int
	errs      []string
}

func (t *passTally) addError(format string, args ...interface{}) {
	t.errs = append(t.errs, fmt.Sprintf(format, args...))
}

// errorMessage joins per-item diagnostics, bounded so a pathological
// pass cannot balloon the sync log row.
func (t *passTally) errorMessage() string {
	const maxErrors = 50
	if len(t.errs) == 0 {
		return ""
	}
	errs := t.errs
	suffix := ""
	if len(errs) > maxErrors {
		suffix = fmt.Sprintf("; ... and %d more", len(errs)-maxErrors)
		errs = errs[:maxErrors]
	}
	msg := errs[0]
	for _, e := range errs[1:] {
		msg += "; " + e
	}
	return msg + suffix
}
