package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/forge/internal/ui/output"
	"go.trai.ch/forge/internal/ui/style"
)

// printer writes styled command output to a single stream.
type printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:        w,
		renderer: lipgloss.NewRenderer(w, termenv.WithProfile(output.ProfileFor(w))),
	}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	return s.Renderer(p.renderer).Render(text)
}

func (p *printer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) header(text string) {
	p.line("%s", p.render(style.Header, text))
}

func (p *printer) ok(format string, args ...any) {
	p.line("%s %s", p.render(style.Ok, style.Check), fmt.Sprintf(format, args...))
}

func (p *printer) bad(format string, args ...any) {
	p.line("%s %s", p.render(style.Bad, style.Cross), fmt.Sprintf(format, args...))
}

func (p *printer) notice(format string, args ...any) {
	p.line("%s %s", p.render(style.Notice, style.Warning), fmt.Sprintf(format, args...))
}

func (p *printer) field(label, value string) {
	if value == "" {
		return
	}
	p.line("  %s %s", p.render(style.Muted, fmt.Sprintf("%-12s", label)), value)
}

// table prints rows with columns padded to their widest cell.
func (p *printer) table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	pad := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	p.line("%s", p.render(style.Header, pad(header)))
	for _, row := range rows {
		p.line("%s", pad(row))
	}
}

func joinKinds[T ~string](kinds []T) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
