package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// LogAppender is an output destination of a GameLogger.
type LogAppender interface {
	io.Writer
	// Refresh reopens underlying resources, e.g. after external log rotation.
	Refresh()
	Close() error
}

// WriterAppender writes to an arbitrary io.Writer. Used for the console and in tests.
type WriterAppender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleAppender writes to stderr.
func NewConsoleAppender() *WriterAppender {
	return NewWriterAppender(os.Stderr)
}

func NewWriterAppender(w io.Writer) *WriterAppender {
	return &WriterAppender{w: w}
}

func (a *WriterAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Write(p)
}

func (a *WriterAppender) Refresh() {}

func (a *WriterAppender) Close() error { return nil }

// FileAppender appends to a file, creating parent directories as needed.
type FileAppender struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func NewFileAppender(path string) (*FileAppender, error) {
	a := &FileAppender{path: path}
	if err := a.open(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *FileAppender) open() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("log: create dir for %s: %w", a.path, err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("log: open %s: %w", a.path, err)
	}
	a.f = f
	return nil
}

func (a *FileAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return 0, os.ErrClosed
	}
	return a.f.Write(p)
}

// Refresh closes and reopens the file so a rotated-away file is released.
func (a *FileAppender) Refresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f != nil {
		_ = a.f.Close()
		a.f = nil
	}
	_ = a.open()
}

func (a *FileAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// Path returns the file being written.
func (a *FileAppender) Path() string {
	return a.path
}
