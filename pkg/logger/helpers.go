package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Icons used by the helper functions
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconRocket  = "🚀"
	IconTarget  = "🎯"
	IconDrone   = "🛸"
	IconMap     = "🗺️"
	IconRefresh = "🔄"
	IconDot     = "•"
)

var (
	colorSection = color.New(color.FgCyan, color.Bold)
	colorRule    = color.New(color.FgCyan)
	colorSub     = color.New(color.FgHiBlack)
	colorKey     = color.New(color.FgCyan)
)

// output returns the writer of the default logger
func output() io.Writer {
	if l, ok := defaultLogger.(*logger); ok && l.entry.Logger.Out != nil {
		return l.entry.Logger.Out
	}
	return os.Stdout
}

func colorEnabled() bool {
	l, ok := defaultLogger.(*logger)
	return ok && !l.formatter.noColor
}

func paint(c *color.Color, s string) string {
	if !colorEnabled() {
		return s
	}
	return c.Sprint(s)
}

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	defaultLogger.Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

// LogSection creates a visual section separator
func LogSection(title string) {
	line := strings.Repeat("=", 50)
	w := output()
	_, _ = fmt.Fprintln(w, paint(colorRule, line))
	_, _ = fmt.Fprintln(w, paint(colorSection, title))
	_, _ = fmt.Fprintln(w, paint(colorRule, line))
}

// LogSubSection creates a visual subsection separator
func LogSubSection(title string) {
	line := strings.Repeat("-", 40)
	w := output()
	_, _ = fmt.Fprintln(w, paint(colorSub, line))
	_, _ = fmt.Fprintln(w, paint(colorSub, title))
	_, _ = fmt.Fprintln(w, paint(colorSub, line))
}

// LogList logs a list of items with bullets
func LogList(title string, items []string) {
	Info(title)
	w := output()
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  %s %s\n", IconDot, item)
	}
}

// LogKeyValue logs a key-value pair
func LogKeyValue(key string, value interface{}) {
	_, _ = fmt.Fprintf(output(), "%s %v\n", paint(colorKey, key+":"), value)
}

// Table represents a simple table for console output
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print writes the table to the default logger output
func (t *Table) Print() {
	t.Fprint(output())
}

// Fprint writes the table to w
func (t *Table) Fprint(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range t.headers {
		_, _ = fmt.Fprintf(w, "%-*s  ", widths[i], h)
	}
	_, _ = fmt.Fprintln(w)

	for i := range t.headers {
		_, _ = fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	_, _ = fmt.Fprintln(w)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				_, _ = fmt.Fprintf(w, "%-*s  ", widths[i], cell)
			}
		}
		_, _ = fmt.Fprintln(w)
	}
}
