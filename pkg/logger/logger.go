package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// prefixField is the logrus data key carrying the WithPrefix value
const prefixField = "prefix"

var (
	colorTime   = color.New(color.FgHiBlack)
	colorPrefix = color.New(color.FgCyan)
	colorFields = color.New(color.FgHiBlack)
	levelColors = map[logrus.Level]*color.Color{
		logrus.DebugLevel: color.New(color.FgHiBlack),
		logrus.InfoLevel:  color.New(color.FgGreen),
		logrus.WarnLevel:  color.New(color.FgYellow),
		logrus.ErrorLevel: color.New(color.FgRed),
		logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	}
)

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// logger adapts a logrus entry to the Logger interface
type logger struct {
	entry     *logrus.Entry
	formatter *consoleFormatter
}

// Default logger instance
var defaultLogger = New()

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// New creates a new logger writing to stdout at info level
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	f := &consoleFormatter{noColor: cfg.NoColor, showTime: cfg.ShowTime}

	base := logrus.New()
	base.SetOutput(cfg.Writer)
	base.SetLevel(toLogrus(cfg.Level))
	base.SetFormatter(f)

	return &logger{entry: logrus.NewEntry(base), formatter: f}
}

// Default returns the package level logger
func Default() Logger {
	return defaultLogger
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	if l, ok := defaultLogger.(*logger); ok {
		l.entry.Logger.SetLevel(toLogrus(level))
	}
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	if l, ok := defaultLogger.(*logger); ok {
		l.formatter.noColor = noColor
	}
	color.NoColor = noColor || color.NoColor
}

// SetOutput redirects the default logger
func SetOutput(w io.Writer) {
	if l, ok := defaultLogger.(*logger); ok {
		l.entry.Logger.SetOutput(w)
	}
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

func (l *logger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logger) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value), formatter: l.formatter}
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	return &logger{entry: l.entry.WithFields(logrus.Fields(fields)), formatter: l.formatter}
}

func (l *logger) WithPrefix(prefix string) Logger {
	return &logger{entry: l.entry.WithField(prefixField, prefix), formatter: l.formatter}
}

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func toLogrus(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// consoleFormatter renders entries as "15:04:05 INFO  [prefix] k=v message"
type consoleFormatter struct {
	noColor  bool
	showTime bool
}

func (f *consoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var parts []string

	if f.showTime {
		parts = append(parts, f.paint(colorTime, entry.Time.Format("15:04:05")))
	}

	parts = append(parts, f.paint(levelColors[entry.Level], levelString(entry.Level)))

	if prefix, ok := entry.Data[prefixField]; ok {
		parts = append(parts, f.paint(colorPrefix, fmt.Sprintf("[%v]", prefix)))
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != prefixField {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, entry.Data[k]))
		}
		parts = append(parts, f.paint(colorFields, strings.Join(fieldParts, " ")))
	}

	parts = append(parts, entry.Message)

	var b bytes.Buffer
	b.WriteString(strings.Join(parts, " "))
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *consoleFormatter) paint(c *color.Color, s string) string {
	if f.noColor || c == nil {
		return s
	}
	return c.Sprint(s)
}

func levelString(level logrus.Level) string {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO "
	case logrus.WarnLevel:
		return "WARN "
	case logrus.ErrorLevel:
		return "ERROR"
	case logrus.FatalLevel, logrus.PanicLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
