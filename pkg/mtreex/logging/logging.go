// Package logging provides component loggers for mtreex. Every package takes
// a logger with Get at init time; output stays silent until the CLI calls
// Init, after which each component writes to the rotating log file and,
// optionally, to the console.
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("parser")
//	logger.Warn("unknown keyword", "keyword", "inode", "line", 12)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var charmLevels = [...]log.Level{
	LevelDebug: log.DebugLevel,
	LevelInfo:  log.InfoLevel,
	LevelWarn:  log.WarnLevel,
	LevelError: log.ErrorLevel,
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "unknown"
}

func (l Level) charm() log.Level {
	if l < LevelDebug || l > LevelError {
		return log.InfoLevel
	}
	return charmLevels[l]
}

// ErrInvalidLevel is returned for an unrecognized level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ErrInvalidFormat is returned for an unrecognized file format.
var ErrInvalidFormat = errors.New("invalid log format")

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Config configures the logging system.
type Config struct {
	// Level is the default level for every component.
	Level string

	// Path is the log file. Empty uses DefaultLogPath().
	Path string

	// Format is the log file encoding: text (default), json or logfmt.
	Format string

	// Rotation controls log file rotation.
	Rotation RotationConfig

	// Components overrides Level per component name.
	Components map[string]string

	// ConsoleLevel also sends records at or above this level to Console.
	// Empty disables console output.
	ConsoleLevel string

	// Console receives console output. Nil means os.Stderr.
	Console io.Writer
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Format:   "text",
		Rotation: DefaultRotationConfig(),
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/mtreex/mtreex.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "mtreex", "mtreex.log")
}

func parseFormat(s string) (log.Formatter, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}
	return log.TextFormatter, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Logger logs for one component. Loggers are cheap handles: they resolve
// their outputs on every call, so a logger taken before Init starts writing
// once Init runs.
type Logger struct {
	component string
	fields    []any
}

// Component returns the name the logger was created for.
func (l *Logger) Component() string { return l.component }

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...any) { l.emit(LevelDebug, msg, kv) }

// Info logs at info level.
func (l *Logger) Info(msg string, kv ...any) { l.emit(LevelInfo, msg, kv) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...any) { l.emit(LevelWarn, msg, kv) }

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...any) { l.emit(LevelError, msg, kv) }

// With returns a logger that adds kv to every record.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{
		component: l.component,
		fields:    append(slices.Clip(l.fields), kv...),
	}
}

func (l *Logger) emit(level Level, msg string, kv []any) {
	r := sinks.route(l.component)
	if r == nil {
		return
	}
	if len(l.fields) > 0 {
		kv = append(slices.Clip(l.fields), kv...)
	}
	r.file.Log(level.charm(), msg, kv...)
	if r.console != nil {
		r.console.Log(level.charm(), msg, kv...)
	}
}

// route holds the configured outputs of one component.
type route struct {
	file    *log.Logger
	console *log.Logger
}

// registry is the process-wide logging state. A nil route means logging
// has not been initialized.
type registry struct {
	mu       sync.RWMutex
	cfg      Config
	level    Level
	levels   map[string]Level
	console  Level
	format   log.Formatter
	writer   *RotatingWriter
	routes   map[string]*route
	handles  map[string]*Logger
	handleMu sync.Mutex
}

var sinks = &registry{handles: make(map[string]*Logger)}

func (r *registry) route(component string) *route {
	r.mu.RLock()
	if r.writer == nil {
		r.mu.RUnlock()
		return nil
	}
	rt, ok := r.routes[component]
	r.mu.RUnlock()
	if ok {
		return rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return nil
	}
	if rt, ok := r.routes[component]; ok {
		return rt
	}
	rt = r.build(component)
	r.routes[component] = rt
	return rt
}

// build creates the outputs for component. r.mu must be held.
func (r *registry) build(component string) *route {
	level := r.level
	if l, ok := r.levels[component]; ok {
		level = l
	}

	rt := &route{
		file: log.NewWithOptions(r.writer, log.Options{
			Level:           level.charm(),
			Prefix:          component,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       r.format,
		}),
	}
	if r.cfg.ConsoleLevel != "" {
		rt.console = log.NewWithOptions(r.cfg.Console, log.Options{
			Level:           r.console.charm(),
			Prefix:          component,
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		})
	}
	return rt
}

// Init configures logging, replacing any earlier configuration. Loggers
// from Get discard output until Init succeeds.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	levels := make(map[string]Level, len(cfg.Components))
	for comp, name := range cfg.Components {
		if levels[comp], err = ParseLevel(name); err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
	}
	consoleLevel := LevelInfo
	if cfg.ConsoleLevel != "" {
		if consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		if cfg.Console == nil {
			cfg.Console = os.Stderr
		}
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return err
	}
	if cfg.Path == "" {
		cfg.Path = DefaultLogPath()
	}

	sinks.mu.Lock()
	defer sinks.mu.Unlock()

	if err := sinks.reset(); err != nil {
		return err
	}
	writer, err := NewRotatingWriter(cfg.Path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	sinks.cfg = cfg
	sinks.level = level
	sinks.levels = levels
	sinks.console = consoleLevel
	sinks.format = format
	sinks.writer = writer
	return nil
}

// reset closes the current writer and drops all routes. r.mu must be held.
func (r *registry) reset() error {
	r.routes = make(map[string]*route)
	if r.writer == nil {
		return nil
	}
	w := r.writer
	r.writer = nil
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// Get returns the logger for component. The same handle is returned for
// repeated calls.
func Get(component string) *Logger {
	sinks.handleMu.Lock()
	defer sinks.handleMu.Unlock()
	if l, ok := sinks.handles[component]; ok {
		return l
	}
	l := &Logger{component: component}
	sinks.handles[component] = l
	return l
}

// Close flushes and closes the log file. Loggers keep working and discard
// output until the next Init.
func Close() error {
	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	return sinks.reset()
}
