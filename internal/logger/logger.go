package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Environment variables configuring the log file path and minimum level.
const (
	envLogPath  = "BONDS_MCP_LOG"
	envLogLevel = "BONDS_MCP_LOG_LEVEL"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

// ParseLevel maps a level name to a Level. Unknown names mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

var (
	mu            sync.Mutex
	std           *log.Logger
	logFile       *os.File
	minLevel      = LevelInfo
	isInitialized bool
)

// InitFromEnv initializes the logger using BONDS_MCP_LOG or a default path
// next to the executable.
func InitFromEnv() error {
	path := os.Getenv(envLogPath)
	if path == "" {
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), "bonds-mcp.log")
		} else {
			path = "./bonds-mcp.log"
		}
	}
	if lvl := os.Getenv(envLogLevel); lvl != "" {
		SetLevel(ParseLevel(lvl))
	}
	return Init(path)
}

// Setup applies a configured level and log path. An empty path falls back to
// InitFromEnv.
func Setup(path, level string) error {
	if level != "" {
		SetLevel(ParseLevel(level))
	}
	if path == "" {
		return InitFromEnv()
	}
	return Init(path)
}

// Init directs output to path, creating parent directories and appending to
// an existing file. "stderr" writes to standard error; stdout is never used
// because it carries the MCP stdio transport.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if isInitialized {
		return nil
	}
	if path == "stderr" {
		std = newStd(os.Stderr)
		isInitialized = true
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = newStd(f)
	isInitialized = true
	return nil
}

// SetOutput replaces the destination. Used by tests and embedding hosts.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std = newStd(w)
	isInitialized = true
}

// SetLevel drops messages below l.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		std = nil
		isInitialized = false
		return err
	}
	return nil
}

func Debugf(format string, args ...any) { write(LevelDebug, format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { write(LevelInfo, format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write(LevelWarn, format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write(LevelError, format, args...) }

func write(level Level, format string, args ...any) {
	mu.Lock()
	if level < minLevel {
		mu.Unlock()
		return
	}
	out := std
	mu.Unlock()

	if out == nil {
		// Fallback: initialize with default if not already.
		_ = InitFromEnv()
		mu.Lock()
		out = std
		mu.Unlock()
	}
	if out != nil {
		out.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
	}
}

func newStd(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
