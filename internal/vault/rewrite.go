package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// leadingWhitespace returns the indent prefix of a line.
func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// ReplaceLine rewrites exactly one line of a file, preserving the
// original line's indentation and every other byte of the file.
//
// lineNumber is 1-based. Replacing a line that no longer exists (the
// file shrank since the scan) is an error; the caller records it and
// moves on.
func ReplaceLine(path string, lineNumber int, newLine string, timeout time.Duration) error {
	data, err := readFileTimeout(path, timeout)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	if lineNumber < 1 || lineNumber > len(lines) {
		return fmt.Errorf("line %d out of range in %s (%d lines)", lineNumber, path, len(lines))
	}

	indent := leadingWhitespace(lines[lineNumber-1])
	lines[lineNumber-1] = indent + newLine

	return writeFileTimeout(path, []byte(strings.Join(lines, "\n")), timeout)
}

// AppendLines appends lines to a file, creating it (and its parent
// directory) when missing. A separating blank line is added when the
// file does not already end with one.
func AppendLines(path string, lines []string, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	var content string
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += strings.Join(lines, "\n") + "\n"

	return writeFileTimeout(path, []byte(content), timeout)
}

// writeFileTimeout mirrors readFileTimeout for the write side.
func writeFileTimeout(path string, data []byte, timeout time.Duration) error {
	ch := make(chan error, 1)

	go func() {
		ch <- os.WriteFile(path, data, 0644)
	}()

	select {
	case err := <-ch:
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out writing %s after %v", path, timeout)
	}
}
