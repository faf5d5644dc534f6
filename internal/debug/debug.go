// Package debug provides the file log for patchwatch.
// Every cycle writes its details here; notifications only carry a summary.
// With verbose mode the same lines are mirrored to stderr.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// LogFileName is the name of the log file.
	LogFileName = "patchwatch.log"
	// LogDirName is the name of the directory containing the log file.
	LogDirName = ".patchwatch"
)

var (
	mu      sync.RWMutex
	verbose bool
	logger  *log.Logger
	logFile *os.File
	logPath string

	// getLogPath is a function variable to allow overriding in tests.
	getLogPath = defaultGetLogPath
)

// Init opens the log file for appending. An empty path selects
// ~/.patchwatch/patchwatch.log. If the file cannot be opened, logging
// falls back to stderr and the error is returned for the caller to report.
func Init(path string, enableVerbose bool) error {
	mu.Lock()
	defer mu.Unlock()

	verbose = enableVerbose
	closeLocked()

	if path == "" {
		p, err := getLogPath()
		if err != nil {
			logger = log.New(os.Stderr, "", log.Ldate|log.Ltime)
			return fmt.Errorf("determine log path: %w", err)
		}
		path = p
	}

	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger = log.New(os.Stderr, "", log.Ldate|log.Ltime)
		return fmt.Errorf("create log directory: %w", err)
	}

	//nolint:gosec // G304: Log path comes from configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logger = log.New(os.Stderr, "", log.Ldate|log.Ltime)
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f
	logPath = path

	var w io.Writer = f
	if verbose {
		w = io.MultiWriter(f, os.Stderr)
	}
	logger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	logger.Printf("=== patchwatch log opened at %s ===", time.Now().Format(time.RFC3339))

	return nil
}

// Close closes the log file if open.
// Safe to call more than once.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
		logger = nil
	}
	logPath = ""
}

// Logf writes an informational line.
func Logf(format string, v ...any) {
	write("INFO", format, v...)
}

// Errorf writes an error line with full detail.
func Errorf(format string, v ...any) {
	write("ERROR", format, v...)
}

// Debugf writes a line only when verbose mode is on.
func Debugf(format string, v ...any) {
	mu.RLock()
	on := verbose
	mu.RUnlock()
	if on {
		write("DEBUG", format, v...)
	}
}

func write(level, format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if logger == nil {
		return
	}
	logger.Printf("[%s] %s", level, fmt.Sprintf(format, v...))
}

// defaultGetLogPath returns the default path to the log file.
func defaultGetLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, LogDirName, LogFileName), nil
}

// GetLogPath returns the path of the open log file, or the default
// location when nothing has been opened yet.
func GetLogPath() (string, error) {
	mu.RLock()
	p := logPath
	mu.RUnlock()
	if p != "" {
		return p, nil
	}
	return getLogPath()
}
