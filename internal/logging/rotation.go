package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter appends to a log file and rotates it by size, keeping a
// fixed number of numbered backups (capture.log.1 is the newest). Safe
// for concurrent writers.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	size    int64
	limit   int64 // bytes before rotation
	backups int
}

// NewRotatingWriter opens (or creates) the log file at path. Rotation
// triggers when a write would push the file past maxSizeMB; maxBackups
// old files are kept. Non-positive arguments fall back to 50 MB and 3
// backups.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &RotatingWriter{
		path:    path,
		limit:   int64(maxSizeMB) * 1024 * 1024,
		backups: maxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
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

// rotate shifts every backup up one slot, dropping the oldest, and
// reopens a fresh file at the base path.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
	}
	os.Remove(w.backupPath(w.backups))
	for i := w.backups - 1; i >= 1; i-- {
		os.Rename(w.backupPath(i), w.backupPath(i+1))
	}
	os.Rename(w.path, w.backupPath(1))
	return w.open()
}

func (w *RotatingWriter) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}
