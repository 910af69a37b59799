// Package console is the operator-facing live output of a capture session.
// It is diagnostic only: raw page console lines, status lines and instructions.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	Error   = lipgloss.Color("#e53935")
	Warning = lipgloss.Color("#FFC107")
	Info    = lipgloss.Color("#2196F3")
	Success = lipgloss.Color("#8BC34A")
	Muted   = lipgloss.Color("#9e9e9e")
)

const ruleWidth = 70

// Console writes styled lines to a single writer. Styles are resolved against
// the writer, so files and buffers receive plain text.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	severity map[string]lipgloss.Style
	plain    lipgloss.Style
	status   lipgloss.Style
	failure  lipgloss.Style
	title    lipgloss.Style
}

// New creates a console bound to w.
func New(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w: w,
		severity: map[string]lipgloss.Style{
			"ERROR":   r.NewStyle().Foreground(Error),
			"ASSERT":  r.NewStyle().Foreground(Error),
			"WARNING": r.NewStyle().Foreground(Warning),
			"WARN":    r.NewStyle().Foreground(Warning),
			"INFO":    r.NewStyle().Foreground(Info),
			"DEBUG":   r.NewStyle().Foreground(Muted),
		},
		plain:   r.NewStyle(),
		status:  r.NewStyle().Foreground(Success),
		failure: r.NewStyle().Foreground(Error),
		title:   r.NewStyle().Foreground(Info),
	}
}

// Line mirrors one page console message as "[SEVERITY] text".
func (c *Console) Line(severity, text string) {
	sev := strings.ToUpper(severity)
	if sev == "" {
		sev = "LOG"
	}
	style, ok := c.severity[sev]
	if !ok {
		style = c.plain
	}
	c.println(style.Render("["+sev+"]") + " " + text)
}

// Statusf prints a status line.
func (c *Console) Statusf(format string, args ...any) {
	c.println(c.status.Render("***") + " " + fmt.Sprintf(format, args...))
}

// Errorf prints a failure line.
func (c *Console) Errorf(format string, args ...any) {
	c.println(c.failure.Render("!!!") + " " + fmt.Sprintf(format, args...))
}

// Banner prints a titled block framed by rules.
func (c *Console) Banner(title, body string) {
	rule := strings.Repeat("=", ruleWidth)
	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	b.WriteString("  " + c.title.Render(title) + "\n")
	b.WriteString(rule + "\n")
	if body != "" {
		b.WriteString(strings.TrimRight(body, "\n") + "\n")
		b.WriteString(rule + "\n")
	}
	c.print(b.String())
}

func (c *Console) println(s string) {
	c.print(s + "\n")
}

func (c *Console) print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, s)
}
