// Package logging builds the loggers handed to the sync engine and
// store. Log output goes to a rotating file so long-running syncs on
// large vaults do not fill the disk; verbose mode mirrors to stderr.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to the given file path, rotating at
// 10MB and keeping 3 old files. With verbose set, lines also go to
// stderr. An empty path logs to stderr only.
func New(path, prefix string, verbose bool) (*log.Logger, error) {
	if path == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		Compress:   true,
	}
	if verbose {
		w = io.MultiWriter(w, os.Stderr)
	}
	return log.New(w, prefix, log.LstdFlags), nil
}
