package lumen

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes leveled, timestamped lines through charmbracelet/log.
type DefaultLogger struct {
	l *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return NewLogger(os.Stderr, prefix, level)
}

func NewLogger(w io.Writer, prefix string, level log.Level) *DefaultLogger {
	return &DefaultLogger{l: log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})}
}

func (l *DefaultLogger) DebugEnabled() bool {
	return l.l.GetLevel() <= log.DebugLevel
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.l.SetLevel(log.DebugLevel)
		return
	}
	if l.DebugEnabled() {
		l.l.SetLevel(log.InfoLevel)
	}
}

// SetLevel applies a level name ("debug", "info", "warn", "error").
func (l *DefaultLogger) SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	l.l.SetLevel(lvl)
	return nil
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.l.Debugf(format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.l.Infof(format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.l.Warnf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.l.Errorf(format, args...) }

// LoggingModule installs a DefaultLogger as a resource. Level defaults to info.
type LoggingModule struct {
	Prefix string
	Level  string
	Output io.Writer
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	out := m.Output
	if out == nil {
		out = os.Stderr
	}
	logger := NewLogger(out, m.Prefix, log.InfoLevel)
	if m.Level != "" {
		if err := logger.SetLevel(m.Level); err != nil {
			logger.Warnf("unknown log level %q, using info", m.Level)
		}
	}
	app.addResources(logger)
}

type nopLogger struct{}

func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Logger returns the installed Logger resource, or a no-op logger. Never nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}
