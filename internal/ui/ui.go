// Package ui prints CLI output: status lines, tables and rendered
// markdown.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	TitleStyle     = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	SuccessStyle   = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	ErrorStyle     = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	WarningStyle   = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	SecondaryStyle = lipgloss.NewStyle().Foreground(SecondaryColor)
)

// Printer writes styled output to Out and errors to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// Stdout prints to the process's stdout and stderr.
func Stdout() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error prints an error line to Err.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.Err, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.Out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Title prints a bold heading.
func (p *Printer) Title(s string) {
	fmt.Fprintln(p.Out, TitleStyle.Render(s))
}

// Muted prints secondary text.
func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.Out, SecondaryStyle.Render(fmt.Sprintf(format, args...)))
}

// Keyword prints a label in bold cyan followed by a value.
func (p *Printer) Keyword(label, value string) {
	color.New(color.FgCyan, color.Bold).Fprint(p.Out, label+": ")
	fmt.Fprintln(p.Out, value)
}

// Table prints rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(p.Out).Render()
}

// Records prints records as a table. Columns are the union of the record
// keys, sorted; nested values print as Go values.
func (p *Printer) Records(records []map[string]any) error {
	if len(records) == 0 {
		p.Muted("(no records)")
		return nil
	}
	seen := make(map[string]bool)
	var headers []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)

	rows := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(headers))
		for j, h := range headers {
			row[j] = Cell(r[h])
		}
		rows[i] = row
	}
	return p.Table(headers, rows)
}

// Cell formats a value for a table cell.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// Markdown renders markdown for the terminal.
func (p *Printer) Markdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(p.Out, out)
	return err
}
