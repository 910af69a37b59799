package capture

import (
	"time"

	"go.uber.org/zap"
)

// LiveConsole is the operator-facing output the handlers report to.
type LiveConsole interface {
	Line(severity, text string)
	Statusf(format string, args ...any)
	Errorf(format string, args ...any)
}

// ConsoleListener mirrors every console line and files the ones the
// classifier keeps into the session log.
type ConsoleListener struct {
	log      *Log
	console  LiveConsole
	logger   *zap.Logger
	classify func(string, time.Time) (Record, bool)
	now      func() time.Time

	seen int
}

// NewConsoleListener creates a listener appending to log.
func NewConsoleListener(log *Log, console LiveConsole, mode Mode, logger *zap.Logger) *ConsoleListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleListener{
		log:      log,
		console:  console,
		logger:   logger,
		classify: classifierFor(mode),
		now:      time.Now,
	}
}

// WithClock replaces the capture clock.
func (l *ConsoleListener) WithClock(now func() time.Time) *ConsoleListener {
	l.now = now
	return l
}

// HandleConsole implements ConsoleHandler.
func (l *ConsoleListener) HandleConsole(msg ConsoleMessage) {
	l.seen++
	l.console.Line(msg.Severity, msg.Text)

	if l.classify == nil {
		return
	}
	rec, ok := l.classify(msg.Text, l.now())
	if !ok {
		return
	}
	if !l.log.Append(rec) {
		l.logger.Debug("record dropped after flush", zap.String("event", string(rec.Category)))
		return
	}
	l.logger.Debug("captured", zap.String("event", string(rec.Category)), zap.String("message", rec.Message))
}

// Seen returns the number of console messages handled.
func (l *ConsoleListener) Seen() int {
	return l.seen
}
