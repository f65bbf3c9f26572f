// Package debug provides debug logging infrastructure for upder.
// Logging is only enabled when --debug is passed at startup.
// Logs are written to <data-home>/upder/debug.log, rotated on each launch.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LogFileName is the name of the debug log file.
	LogFileName = "debug.log"
	// LogDirName is the name of the directory containing the log file.
	LogDirName = "upder"

	maxLogSizeMB  = 5
	maxLogBackups = 3
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  *logrus.Logger
	logFile *lumberjack.Logger

	// getLogPath is a function variable to allow overriding in tests.
	getLogPath = defaultGetLogPath
)

type initSettings struct {
	logPath string
}

// Option configures Init.
type Option func(*initSettings)

// WithLogPath writes the log to path instead of the default location.
func WithLogPath(path string) Option {
	return func(s *initSettings) {
		s.logPath = strings.TrimSpace(path)
	}
}

// Init initializes the debug logging system.
// If enable is false, all logging operations become no-ops.
// If enable is true, the previous log is rotated away and a fresh one started.
func Init(enable bool, opts ...Option) error {
	mu.Lock()
	defer mu.Unlock()

	settings := initSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	enabled = false
	logger = logrus.New()
	logger.SetOutput(io.Discard)
	if !enable {
		return nil
	}

	logPath := settings.logPath
	if logPath == "" {
		path, err := getLogPath()
		if err != nil {
			return fmt.Errorf("determine log path: %w", err)
		}
		logPath = path
	}

	//nolint:gosec // G301: User data directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	logFile = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	}
	if _, err := os.Stat(logPath); err == nil {
		if err := logFile.Rotate(); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	}

	logger.SetOutput(logFile)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	enabled = true
	logger.Infof("=== upder debug log started at %s ===", time.Now().Format(time.RFC3339))

	return nil
}

// Close closes the debug log file if open.
// Safe to call even if logging is disabled.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Log writes a debug message if debug logging is enabled.
// Arguments are handled in the manner of fmt.Print.
func Log(v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled || logger == nil {
		return
	}
	logger.Debug(v...)
}

// Logf writes a formatted debug message if debug logging is enabled.
// Arguments are handled in the manner of fmt.Printf.
func Logf(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled || logger == nil {
		return
	}
	logger.Debugf(format, v...)
}

// WithFields returns a structured entry. When logging is disabled the entry
// writes nowhere.
func WithFields(fields logrus.Fields) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled || logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		return discard.WithFields(fields)
	}
	return logger.WithFields(fields)
}

// Enabled returns whether debug logging is currently enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// defaultGetLogPath returns the path to the debug log file.
func defaultGetLogPath() (string, error) {
	if dataHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); dataHome != "" {
		return filepath.Join(dataHome, LogDirName, LogFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, ".local", "share", LogDirName, LogFileName), nil
}

// GetLogPath returns the default path to the debug log file.
func GetLogPath() (string, error) {
	return getLogPath()
}
