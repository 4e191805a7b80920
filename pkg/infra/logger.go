package infra

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/config"
)

const serviceName = "eip-hcwathome-openmrs"

var (
	logFileMu sync.Mutex
	logFile   *os.File
)

// SetupLogger builds the process logger from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
// Records always go to stdout; LOG_FILE adds a copy on disk.
func SetupLogger(cfg *config.Config) *slog.Logger {
	level := ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	out := logOutput(cfg.LogFile)

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "JSON") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler).With("service", serviceName)
}

// ParseLevel falls back to INFO for unknown names
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logOutput(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// stdout only
		return os.Stdout
	}

	logFileMu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logFileMu.Unlock()

	return io.MultiWriter(os.Stdout, f)
}

// CloseLogger releases the LOG_FILE handle, if any
func CloseLogger() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
