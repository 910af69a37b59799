package console

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	tests := []struct {
		severity string
		text     string
		want     string
	}{
		{severity: "log", text: "hello", want: "[LOG] hello\n"},
		{severity: "warning", text: "careful", want: "[WARNING] careful\n"},
		{severity: "error", text: "boom", want: "[ERROR] boom\n"},
		{severity: "", text: "bare", want: "[LOG] bare\n"},
		{severity: "table", text: "\tindented", want: "[TABLE] \tindented\n"},
	}
	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf).Line(tt.severity, tt.text)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestStatusAndError(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.Statusf("Saved to: %s", "/tmp/report.json")
	c.Errorf("Could not save %s", "x.json")

	assert.Equal(t, "*** Saved to: /tmp/report.json\n!!! Could not save x.json\n", buf.String())
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Banner("Config Mode Tracker", "  1. Click Start\n")

	out := buf.String()
	assert.Contains(t, out, "  Config Mode Tracker\n")
	assert.Contains(t, out, "  1. Click Start\n")
	assert.Equal(t, 3, strings.Count(out, strings.Repeat("=", ruleWidth)))
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Line("log", "same line")
		}()
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, "[LOG] same line", line)
	}
}
