package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is a log severity. Lines below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger appends timestamped plain-text lines to a file, rotating when
// the file exceeds maxBytes. Rotated files are path.1, path.2, ... up to
// maxFiles; the oldest is dropped.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	size     int64
	maxBytes int64
	maxFiles int
	level    Level
	now      func() time.Time
}

// NewLogger opens (or creates) the log file at path. maxSizeMB and
// maxFiles of zero fall back to 10 MB and 5 files.
func NewLogger(path, level string, maxSizeMB, maxFiles int) (*Logger, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxFiles <= 0 {
		maxFiles = 5
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Logger{
		file:     f,
		path:     path,
		size:     info.Size(),
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
		level:    ParseLevel(level),
		now:      time.Now,
	}, nil
}

func (l *Logger) Debug(format string, a ...any) { l.write(LevelDebug, format, a...) }
func (l *Logger) Info(format string, a ...any)  { l.write(LevelInfo, format, a...) }
func (l *Logger) Warn(format string, a ...any)  { l.write(LevelWarn, format, a...) }
func (l *Logger) Error(format string, a ...any) { l.write(LevelError, format, a...) }

func (l *Logger) write(level Level, format string, a ...any) {
	if l == nil || level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		l.now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, a...))
	if l.size+int64(len(line)) > l.maxBytes {
		if err := l.rotate(); err != nil {
			return
		}
	}
	n, err := l.file.WriteString(line)
	if err == nil {
		l.size += int64(n)
	}
}

// rotate shifts path.N-1 -> path.N for N descending, moves the live file
// to path.1, and reopens a fresh file. Caller holds the lock.
func (l *Logger) rotate() error {
	l.file.Close()
	for i := l.maxFiles - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", l.path, i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		os.Rename(src, fmt.Sprintf("%s.%d", l.path, i+1))
	}
	os.Rename(l.path, l.path+".1")
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		l.file = nil
		return err
	}
	l.file = f
	l.size = 0
	return nil
}

// Close flushes and closes the log file. Safe on a nil logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
