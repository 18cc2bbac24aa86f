package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/muesli/termenv"
)

// PrettyLogger provides pretty formatted console output
type PrettyLogger struct {
	writer io.Writer
	styles PrettyStyles
}

// PrettyStyles contains lipgloss styles for different log types
type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Path    lipgloss.Style
	Muted   lipgloss.Style
}

// NewPrettyStyles builds the palette against a renderer bound to w, so colors
// are dropped when w is not a terminal.
func NewPrettyStyles(w io.Writer) PrettyStyles {
	r := lipgloss.NewRenderer(w)
	if os.Getenv("NO_COLOR") != "" {
		r.SetColorProfile(termenv.Ascii)
	}
	return PrettyStyles{
		Success: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true), // Green
		Info:    r.NewStyle().Foreground(lipgloss.Color("12")),            // Blue
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),            // Yellow
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),  // Red
		Key:     r.NewStyle().Foreground(lipgloss.Color("8")),             // Gray
		Value:   r.NewStyle().Foreground(lipgloss.Color("14")).Bold(true), // Cyan
		Path:    r.NewStyle().Foreground(lipgloss.Color("6")).Italic(true),
		Muted:   r.NewStyle().Faint(true),
	}
}

// NewPrettyLogger creates a pretty logger wrapper
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer: os.Stderr,
		styles: NewPrettyStyles(os.Stderr),
	}
}

// WithWriter sets a custom writer for pretty output
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	p.styles = NewPrettyStyles(w)
	return p
}

// Success logs a success message with a checkmark
func (p *PrettyLogger) Success(message string) {
	fmt.Fprintf(p.writer, "%s %s\n",
		p.styles.Success.Render("✓"),
		p.styles.Success.Render(message))
}

// InfoPretty logs an info message with pretty formatting
func (p *PrettyLogger) InfoPretty(message string) {
	fmt.Fprintf(p.writer, "%s\n", p.styles.Info.Render(message))
}

// WarnPretty logs a warning with pretty formatting
func (p *PrettyLogger) WarnPretty(message string) {
	fmt.Fprintf(p.writer, "%s %s\n",
		p.styles.Warning.Render("⚠"),
		p.styles.Warning.Render(message))
}

// ErrorPretty logs an error with pretty formatting
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	fmt.Fprintf(p.writer, "%s %s",
		p.styles.Error.Render("✗"),
		p.styles.Error.Render(message))
	if err != nil {
		fmt.Fprintf(p.writer, ": %s", p.styles.Error.Render(err.Error()))
	}
	fmt.Fprintln(p.writer)
}

// Field logs a key-value pair with pretty formatting
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n",
		p.styles.Key.Render(key),
		p.styles.Value.Render(fmt.Sprint(value)))
}

// Path logs a file path with special formatting
func (p *PrettyLogger) Path(label string, path string) {
	fmt.Fprintf(p.writer, "%s: %s\n",
		p.styles.Key.Render(label),
		p.styles.Path.Render(path))
}

// Toast renders a transient notification as a single line.
func (p *PrettyLogger) Toast(t models.Toast) {
	var icon string
	style := p.styles.Info
	switch t.Level {
	case models.ToastSuccess:
		icon, style = "✓", p.styles.Success
	case models.ToastWarning:
		icon, style = "⚠", p.styles.Warning
	case models.ToastError:
		icon, style = "✗", p.styles.Error
	default:
		icon = "•"
	}
	line := style.Render(icon + " " + t.Title)
	if t.Message != "" {
		line += " " + t.Message
	}
	if !t.At.IsZero() {
		line += " " + p.styles.Muted.Render(t.At.Local().Format("15:04:05"))
	}
	fmt.Fprintln(p.writer, line)
}

// Divider prints a visual divider
func (p *PrettyLogger) Divider() {
	fmt.Fprintln(p.writer, p.styles.Key.Render(strings.Repeat("─", 60)))
}

// Blank prints a blank line
func (p *PrettyLogger) Blank() {
	fmt.Fprintln(p.writer)
}
