// Package logging sets up the tool's structured logger: slog text output to
// stderr, teed into an append-only log file rotated by size.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	// maxLogSize is the rotation threshold.
	maxLogSize = 1_000_000

	// backupCount numbered backups are kept (<log>.1 is newest).
	backupCount = 3
)

// RotatingWriter appends to a log file and rotates it through numbered
// backups once it grows past the size threshold.
type RotatingWriter struct {
	path    string
	maxSize int64

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotatingWriter opens (creating if needed) the log file at path.
func NewRotatingWriter(path string) (*RotatingWriter, error) {
	return newRotatingWriter(path, maxLogSize)
}

func newRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, maxSize: maxSize}

	if err := w.open(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *RotatingWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = f
	w.size = info.Size()

	return nil
}

// Write appends to the log file, rotating first if the file has already
// grown past the threshold.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)

	return n, err
}

// rotate shifts path.1 -> path.2 ... and moves the live file to path.1,
// then reopens a fresh file. The oldest backup falls off the end.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}

	for i := backupCount - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", w.path, i)
		to := fmt.Sprintf("%s.%d", w.path, i+1)

		// Missing backups are fine.
		_ = os.Rename(from, to)
	}

	if err := os.Rename(w.path, w.path+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}

	return w.open()
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}

// New returns a text slog.Logger writing to stderr and, when logPath is
// non-empty and openable, the rotated log file. A log file that cannot be
// opened is reported on stderr and otherwise ignored; losing the file never
// blocks the tool.
func New(logPath string, debug bool) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	out := io.Writer(os.Stderr)

	var closer io.Closer

	if logPath != "" {
		w, err := NewRotatingWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging to stderr only: %v\n", err)
		} else {
			out = io.MultiWriter(os.Stderr, w)
			closer = w
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))

	return logger, closer
}
