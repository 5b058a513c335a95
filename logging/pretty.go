package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PrettyLogger provides pretty formatted console output for CLI commands.
type PrettyLogger struct {
	writer io.Writer
	styles PrettyStyles
}

// PrettyStyles contains lipgloss styles for different output kinds
type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Header  lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultPrettyStyles returns the default styling for pretty output
func DefaultPrettyStyles() PrettyStyles {
	return PrettyStyles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Header:  lipgloss.NewStyle().Bold(true).Underline(true),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
	}
}

// NewPrettyLogger creates a pretty logger writing to stdout
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer: os.Stdout,
		styles: DefaultPrettyStyles(),
	}
}

// WithWriter sets a custom writer for pretty output
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	return p
}

// Success prints a success line with a checkmark
func (p *PrettyLogger) Success(message string) {
	fmt.Fprintln(p.writer, p.styles.Success.Render("✓ "+message))
}

// InfoPretty prints an informational line
func (p *PrettyLogger) InfoPretty(message string) {
	fmt.Fprintln(p.writer, p.styles.Info.Render(message))
}

// WarnPretty prints a warning line
func (p *PrettyLogger) WarnPretty(message string) {
	fmt.Fprintln(p.writer, p.styles.Warning.Render("! "+message))
}

// Header prints a section header
func (p *PrettyLogger) Header(title string) {
	fmt.Fprintln(p.writer, p.styles.Header.Render(title))
}

// Field prints an indented key/value pair
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "  %s %s\n", p.styles.Key.Render(key+":"), p.styles.Value.Render(fmt.Sprintf("%v", value)))
}

// Muted prints de-emphasized text
func (p *PrettyLogger) Muted(message string) {
	fmt.Fprintln(p.writer, p.styles.Muted.Render(message))
}

// Table prints rows as left-aligned columns
func (p *PrettyLogger) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(p.writer, p.styles.Key.Render(line(headers)))
	for _, row := range rows {
		fmt.Fprintln(p.writer, line(row))
	}
}
