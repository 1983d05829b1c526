// Package logging builds the zerolog logger shared by all commands.
//
// Diagnostics go to stderr in console format so that stdout stays reserved
// for command results (text or --json). When a log directory is configured,
// the same events are also appended as JSON lines to a rotating file there.
//
// The file sink can be created disabled. Commands that must not touch the
// project before their preflight passes (up, stop, down) enable it only
// afterwards, so a failed preflight leaves no logs/ directory behind.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file created inside the log directory.
const FileName = "ctdeploy.log"

// Options selects the sinks and level for NewLogger.
type Options struct {
	// Level is a zerolog level name; unknown values fall back to info.
	Level string

	// Verbose forces debug level regardless of Level.
	Verbose bool

	// Console receives human-readable output. Defaults to os.Stderr.
	Console io.Writer

	// NoColor disables ANSI colors on the console writer.
	NoColor bool

	// Dir configures the rotating file sink when non-empty.
	Dir string

	// Deferred leaves the file sink disabled until Sink.Enable is called.
	// Events logged before that reach the console only.
	Deferred bool
}

// Sink is the rotating file behind the logger. A nil *Sink is valid and
// does nothing, which is what NewLogger returns when Dir is empty.
type Sink struct {
	mu     sync.Mutex
	dir    string
	lumber *lumberjack.Logger
}

// Write appends p to the log file, or drops it while the sink is disabled.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lumber == nil {
		return len(p), nil
	}
	return s.lumber.Write(p)
}

// Enable creates the log directory and starts writing to the file.
// Calling it again is a no-op.
func (s *Sink) Enable() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lumber != nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	s.lumber = &lumberjack.Logger{
		Filename:   filepath.Join(s.dir, FileName),
		MaxSize:    10,
		MaxBackups: 5,
		Compress:   true,
	}
	return nil
}

// Enabled reports whether events reach the file.
func (s *Sink) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lumber != nil
}

// Close flushes and closes the file, if it was ever opened.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lumber == nil {
		return nil
	}
	return s.lumber.Close()
}

// NewLogger creates a structured zerolog.Logger. The returned sink must be
// closed by the caller; it is nil when no Dir was configured.
func NewLogger(opts Options) (zerolog.Logger, *Sink, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		NoColor:    opts.NoColor,
		TimeFormat: time.TimeOnly,
	}}

	var sink *Sink
	if opts.Dir != "" {
		sink = &Sink{dir: opts.Dir}
		if !opts.Deferred {
			if err := sink.Enable(); err != nil {
				return zerolog.Nop(), nil, err
			}
		}
		writers = append(writers, sink)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Str("app", "ctdeploy").Logger()

	return logger.Level(ParseLevel(opts.Level, opts.Verbose)), sink, nil
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(name string, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
