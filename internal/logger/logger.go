package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance
	Logger zerolog.Logger

	// Component loggers are created at package init, before Initialize runs. They all write
	// through this sink so that Initialize can still redirect them.
	sink = &switchWriter{w: newConsoleWriter(os.Stdout)}
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	Logger = zerolog.New(sink).With().Timestamp().Caller().Logger()
	log.Logger = Logger
}

// Options configures the global logger.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // console | json
	File   string // Optional path, written alongside stdout
}

type switchWriter struct {
	mu   sync.RWMutex
	w    io.Writer
	file *os.File // Log file behind w, if any; closed when w is replaced
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer, file *os.File) {
	s.mu.Lock()
	previous := s.file
	s.w, s.file = w, file
	s.mu.Unlock()

	if previous != nil && previous != file {
		_ = previous.Close()
	}
}

func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    false,
	}
}

// Initialize sets up the global logger with a console writer at the given level
func Initialize(logLevel string) {
	if err := Configure(Options{Level: logLevel}); err != nil {
		Logger.Error().Err(err).Msg("Failed to configure logger, keeping console output")
	}
}

// Configure applies opts to the global logger and every component logger.
func Configure(opts Options) error {
	var out io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "console", "text":
		out = newConsoleWriter(os.Stdout)
	case "json":
		out = os.Stdout
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	var file *os.File
	if opts.File != "" {
		var err error
		if file, err = FileWriter(opts.File); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, file)
	}

	zerolog.SetGlobalLevel(parseLevel(opts.Level))
	sink.set(out, file)
	return nil
}

// SetOutput redirects all loggers to w. Used by tests.
func SetOutput(w io.Writer) {
	sink.set(w, nil)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// GetForComponent returns a logger with a component field for better filtering
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// FileWriter opens a log file for optional use alongside console logging
func FileWriter(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return file, nil
}
