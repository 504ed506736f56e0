package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RotatingFileWriter is an io.WriteCloser that rolls the file over once it
// would exceed maxSize bytes. Backups are named name.1.ext (newest) through
// name.N.ext (oldest).
type RotatingFileWriter struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	size       int64
}

// NewRotatingFileWriter opens filePath for appending
func NewRotatingFileWriter(filePath string, maxSize int64, maxBackups int) (*RotatingFileWriter, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max size must be positive, got %d", maxSize)
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	w := &RotatingFileWriter{
		filePath:   filePath,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	// An oversized single record still goes to a fresh file
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Sync flushes the current file to disk
func (w *RotatingFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the file
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) open() error {
	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file = file
	w.size = info.Size()
	return nil
}

// rotate shifts name.k.ext to name.k+1.ext, drops anything past maxBackups,
// and moves the live file to name.1.ext.
func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if w.maxBackups == 0 {
		if err := os.Remove(w.filePath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return w.open()
	}

	_ = os.Remove(w.backupName(w.maxBackups))
	for i := w.maxBackups - 1; i >= 1; i-- {
		src := w.backupName(i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, w.backupName(i+1)); err != nil {
			return err
		}
	}
	if err := os.Rename(w.filePath, w.backupName(1)); err != nil && !os.IsNotExist(err) {
		return err
	}

	return w.open()
}

func (w *RotatingFileWriter) backupName(index int) string {
	dir := filepath.Dir(w.filePath)
	base := filepath.Base(w.filePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s.%d%s", name, index, ext))
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)
