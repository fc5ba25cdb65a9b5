package logger

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

const (
	// LogFilePermissions is the mode used when creating log files
	LogFilePermissions = 0o644

	fileBufferSize = 32 * 1024
)

// fileWriter is a mutex guarded buffered writer over an append-only file
type fileWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool
}

func newFileWriter(path string) (*fileWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return &fileWriter{file: file, writer: bufio.NewWriterSize(file, fileBufferSize)}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.writer.Write(p)
}

// Flush pushes buffered data to the OS
func (w *fileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.writer.Flush()
}

// Close flushes, syncs and closes the file. Calling it twice is safe.
func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
