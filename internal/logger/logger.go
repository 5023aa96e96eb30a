package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

func init() {
	// Silence the package-level charmbracelet/log logger; everything goes
	// through Log so table output stays clean.
	log.SetLevel(log.FatalLevel)
}

var (
	// Log is the shared logger instance for the process.
	Log *log.Logger

	logFile *os.File
)

// Init sets up Log. Logs always go to the cache-dir log file when one can be
// opened; verbose additionally mirrors them to stderr at debug level.
func Init(verbose bool) error {
	output, level := io.Writer(os.Stderr), log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}

	logDir := filepath.Join(cacheDir(), "oremon")
	if err := os.MkdirAll(logDir, 0755); err == nil {
		f, err := os.OpenFile(filepath.Join(logDir, "oremon.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			logFile = f
			if verbose {
				output = io.MultiWriter(f, os.Stderr)
			} else {
				output, level = f, log.InfoLevel
			}
		}
	}

	Log = log.NewWithOptions(output, log.Options{ReportTimestamp: true})
	Log.SetLevel(level)
	return nil
}

// Close releases the log file, if any.
func Close() {
	if logFile != nil {
		_ = logFile.Close()
	}
}

func cacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache")
}
