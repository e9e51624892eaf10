// Package vault reads and rewrites markdown files in an Obsidian vault.
//
// The scanner expands configured glob patterns against the vault root
// and yields whole files split into lines; the rewrite side replaces a
// single task line in place, leaving every other byte of the file
// untouched.
package vault

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultFileTimeout bounds a single file read or write.
const DefaultFileTimeout = 5 * time.Second

// File is one scanned markdown file.
type File struct {
	// Path is the absolute path; RelPath is relative to the vault root.
	Path    string
	RelPath string

	// Modified is the file mtime at scan time.
	Modified time.Time

	// Lines holds the file content split on '\n'. Line numbers are
	// 1-based indexes into this slice.
	Lines []string
}

// Failure records a file that could not be scanned. Failures isolate
// the file; they never abort the pass.
type Failure struct {
	Path string
	Err  error
}

// Scanner expands glob patterns against a vault root.
type Scanner struct {
	vaultPath   string
	fileTimeout time.Duration
	logger      *log.Logger
}

// NewScanner creates a scanner rooted at vaultPath.
//
// If logger is nil, a default logger writing to stderr is used.
func NewScanner(vaultPath string, logger *log.Logger) (*Scanner, error) {
	info, err := os.Stat(vaultPath)
	if err != nil {
		return nil, fmt.Errorf("vault path %s: %w", vaultPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path %s is not a directory", vaultPath)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[vault] ", log.LstdFlags)
	}
	return &Scanner{
		vaultPath:   vaultPath,
		fileTimeout: DefaultFileTimeout,
		logger:      logger,
	}, nil
}

// SetFileTimeout overrides the per-file read/write deadline.
func (s *Scanner) SetFileTimeout(d time.Duration) {
	s.fileTimeout = d
}

// Scan expands each pattern relative to the vault root and reads every
// matching markdown file. Overlapping patterns are deduplicated.
//
// Unreadable or non-UTF-8 files are skipped and returned as failures.
// A malformed glob pattern is a configuration error and aborts the
// scan. The context is checked between files; cancellation returns
// ctx.Err with the files read so far discarded by the caller.
func (s *Scanner) Scan(ctx context.Context, patterns []string) ([]File, []Failure, error) {
	var files []File
	var failures []Failure
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.vaultPath, pattern))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid sync source pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, path := range matches {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			if seen[path] {
				continue
			}
			seen[path] = true

			if strings.ToLower(filepath.Ext(path)) != ".md" {
				continue
			}

			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}

			file, err := s.readFile(path, info.ModTime())
			if err != nil {
				s.logger.Printf("WARNING: skipping %s: %v", path, err)
				failures = append(failures, Failure{Path: path, Err: err})
				continue
			}
			files = append(files, file)
		}
	}

	return files, failures, nil
}

// ScanSingle reads one explicitly named file, resolving relative paths
// against the vault root.
func (s *Scanner) ScanSingle(path string) (File, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.vaultPath, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return s.readFile(path, info.ModTime())
}

func (s *Scanner) readFile(path string, modified time.Time) (File, error) {
	data, err := readFileTimeout(path, s.fileTimeout)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return File{}, fmt.Errorf("%s is not valid UTF-8", path)
	}

	rel, err := filepath.Rel(s.vaultPath, path)
	if err != nil {
		rel = path
	}

	return File{
		Path:     path,
		RelPath:  rel,
		Modified: modified,
		Lines:    strings.Split(string(data), "\n"),
	}, nil
}

// readFileTimeout reads a file with a bounded deadline so one hung
// filesystem (network mount, dead NFS) cannot stall the whole pass.
func readFileTimeout(path string, timeout time.Duration) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(path)
		ch <- result{data, err}
	}()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out reading %s after %v", path, timeout)
	}
}
