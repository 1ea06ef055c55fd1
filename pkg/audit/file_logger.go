package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boardwalk-dev/boardwalk/pkg/authz"
)

// FileLogger appends decision events as JSON lines to a log file, rotating
// by size.
type FileLogger struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	maxSize int64
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	Path    string // Decision log file path
	MaxSize int64  // Max file size in bytes before rotation (default: 100MB)
}

// NewFileLogger creates a new file-based audit sink
func NewFileLogger(cfg FileLoggerConfig) (*FileLogger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit log path must not be empty")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100 * 1024 * 1024
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &FileLogger{
		path:    cfg.Path,
		maxSize: cfg.MaxSize,
	}
	if err := logger.open(); err != nil {
		return nil, err
	}
	return logger, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

// Log implements Logger.
func (l *FileLogger) Log(_ context.Context, event *authz.DecisionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if err := l.open(); err != nil {
			return err
		}
	}
	if err := l.rotateIfNeeded(); err != nil {
		return err
	}
	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// rotateIfNeeded renames the current file aside once it exceeds maxSize.
func (l *FileLogger) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil || info.Size() < l.maxSize {
		return nil
	}

	l.file.Close()
	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().Format("2006-01-02-15-04-05"))
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return l.open()
}

// Close implements Logger.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
