package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"configtrack/internal/capture"
	"configtrack/internal/console"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <log-file>",
	Short: "Summarize a saved session log",
	Args:  cobra.ExactArgs(1),
	RunE:  inspectLog,
}

func inspectLog(cmd *cobra.Command, args []string) error {
	records, err := capture.ReadLogFile(args[0])
	if err != nil {
		return err
	}

	counts := make(map[capture.Category]int)
	for _, r := range records {
		counts[r.Category]++
	}

	switch inspectFormat {
	case "", "text":
		writeTextReport(cmd.OutOrStdout(), filepath.Base(args[0]), records, counts)
		return nil
	case "markdown", "md":
		return writeMarkdownReport(cmd.OutOrStdout(), filepath.Base(args[0]), records, counts)
	default:
		return fmt.Errorf("unknown format %q (text, markdown)", inspectFormat)
	}
}

func writeTextReport(w io.Writer, name string, records []capture.Record, counts map[capture.Category]int) {
	var body strings.Builder
	for _, c := range capture.Categories {
		if counts[c] > 0 {
			fmt.Fprintf(&body, "  %-12s %d\n", c, counts[c])
		}
	}
	fmt.Fprintf(&body, "  %-12s %d\n", "total", len(records))
	console.New(w).Banner(name, body.String())

	for _, r := range records {
		fmt.Fprintf(w, "%s  %-12s %s\n", r.CapturedAt.Format(time.RFC3339), r.Category, r.Message)
	}
}

func writeMarkdownReport(w io.Writer, name string, records []capture.Record, counts map[capture.Category]int) error {
	style := glamour.WithStylePath("notty")
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(markdownReport(name, records, counts))
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func markdownReport(name string, records []capture.Record, counts map[capture.Category]int) string {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", name)
	md.WriteString("| event | count |\n|---|---|\n")
	for _, c := range capture.Categories {
		if counts[c] > 0 {
			fmt.Fprintf(&md, "| %s | %d |\n", c, counts[c])
		}
	}
	fmt.Fprintf(&md, "| total | %d |\n\n", len(records))

	md.WriteString("| time | event | message |\n|---|---|---|\n")
	for _, r := range records {
		fmt.Fprintf(&md, "| %s | %s | %s |\n", r.CapturedAt.Format("15:04:05.000"), r.Category, tableCell(r.Message))
	}
	return md.String()
}

// tableCell keeps a message inside one markdown table row.
func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
