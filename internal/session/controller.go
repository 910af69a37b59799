// Package session runs one capture session end to end: launch the browser, load
// the tutorial, collect console and download events until the operator closes
// the window or interrupts, then persist the log exactly once and release the
// browser.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"configtrack/internal/archive"
	"configtrack/internal/capture"
	"configtrack/internal/config"
	"configtrack/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout bounds releasing the browser.
	shutdownTimeout = 10 * time.Second
	// slowNavigation is when a target load is worth a warning.
	slowNavigation = 10 * time.Second
)

var (
	// ErrLaunch is returned when the browser cannot be started.
	ErrLaunch = errors.New("browser launch failed")
	// ErrNavigation is returned when the target page cannot be loaded.
	ErrNavigation = errors.New("target navigation failed")
)

// Browser is the controlled browser a session drives.
type Browser interface {
	Start(ctx context.Context) error
	Listen(pub capture.Publisher) error
	Navigate(ctx context.Context, target string) error
	Alive() bool
	Shutdown(ctx context.Context) error
}

// Console is the live operator output.
type Console interface {
	capture.LiveConsole
	Banner(title, body string)
}

// Recorder archives finished sessions.
type Recorder interface {
	Record(ctx context.Context, sum archive.Summary) error
}

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateNavigatingTarget
	StateActive
	StateTerminating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateNavigatingTarget:
		return "navigating-target"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TerminalState records why a session ended.
type TerminalState string

const (
	TerminalNone             TerminalState = ""
	TerminalClosedByOperator TerminalState = "closed-by-operator"
	TerminalInterrupted      TerminalState = "interrupted"
)

// Session is one run against the target page. It owns its Log.
type Session struct {
	ID        string
	Profile   config.Profile
	Target    string
	StartedAt time.Time
	Terminal  TerminalState
	Log       *capture.Log
}

// Result is what escapes a finished session.
type Result struct {
	SessionID       string
	Profile         string
	Target          string
	StartedAt       time.Time
	EndedAt         time.Time
	Terminal        TerminalState
	LogPath         string // empty when nothing was persisted
	FlushErr        error
	Records         []capture.Record
	Counts          map[capture.Category]int
	Downloads       []capture.DownloadedFile
	DownloadsFailed int
}

// Options configures a Controller.
type Options struct {
	Profile         config.Profile
	Target          string
	Destination     string
	PollInterval    time.Duration
	QueueSize       int
	RecordDownloads bool

	Console  Console
	Logger   *zap.Logger
	Recorder Recorder // optional

	// CaptureLogger receives dispatcher, listener and download diagnostics.
	// Defaults to Logger.
	CaptureLogger *zap.Logger

	// Now is the clock for session start and capture times.
	Now func() time.Time
}

// Controller drives a single session through its states.
type Controller struct {
	browser Browser
	opts    Options
	logger  *zap.Logger

	mu    sync.RWMutex
	state State
}

// NewController creates a controller for b.
func NewController(b Browser, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CaptureLogger == nil {
		opts.CaptureLogger = opts.Logger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Controller{browser: b, opts: opts, logger: opts.Logger, state: StateIdle}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("session state", zap.Stringer("from", prev), zap.Stringer("to", s))
}

// Run executes the session until a terminal trigger. Launch and navigation
// failures return ErrLaunch or ErrNavigation; a failed log flush is reported in
// Result.FlushErr. The browser is released on every path.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		Profile:   c.opts.Profile,
		Target:    c.opts.Target,
		StartedAt: c.opts.Now(),
		Log:       capture.NewLog(),
	}
	logger := c.logger.With(zap.String("session", sess.ID), zap.String("profile", sess.Profile.Name))
	out := c.opts.Console

	defer func() {
		c.release(logger)
		c.setState(StateClosed)
	}()

	c.setState(StateLaunching)
	out.Statusf("Launching browser...")
	timer := logging.StartTimer(logger, "browser start")
	if err := c.browser.Start(ctx); err != nil {
		logger.Error("browser start failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	timer.Stop()

	capLogger := c.opts.CaptureLogger.With(zap.String("session", sess.ID))
	dispatcher := capture.NewDispatcher(c.opts.QueueSize, capLogger)
	listener := capture.NewConsoleListener(sess.Log, out, sess.Profile.Mode, capLogger).WithClock(c.opts.Now)
	defer dispatcher.SubscribeConsole(listener)()
	var interceptor *capture.DownloadInterceptor
	if sess.Profile.Downloads {
		interceptor = capture.NewDownloadInterceptor(c.opts.Destination, sess.Log, c.opts.RecordDownloads, out, capLogger).
			WithClock(c.opts.Now)
		defer dispatcher.SubscribeDownload(interceptor)()
	}
	dispatcher.Start()
	defer dispatcher.Close()

	if err := c.browser.Listen(dispatcher); err != nil {
		logger.Error("event wiring failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	c.setState(StateNavigatingTarget)
	out.Statusf("Loading %s", sess.Target)
	timer = logging.StartTimer(logger, "navigate")
	if err := c.browser.Navigate(ctx, sess.Target); err != nil {
		if ctx.Err() == nil {
			logger.Error("navigation failed", zap.String("target", sess.Target), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
		}
		// Interrupted while loading: still a normal shutdown.
		sess.Terminal = TerminalInterrupted
	}
	timer.StopWithThreshold(slowNavigation)

	if sess.Terminal == TerminalNone {
		c.setState(StateActive)
		out.Banner(sess.Profile.Title, sess.Profile.Instructions)
		if sess.Profile.PersistLog {
			out.Statusf("Session log will be written to %s", c.opts.Destination)
		}
		sess.Terminal = c.waitForTerminal(ctx)
	}
	logger.Info("session ending", zap.String("terminal", string(sess.Terminal)))

	c.setState(StateTerminating)
	dispatcher.Close()

	res := &Result{
		SessionID: sess.ID,
		Profile:   sess.Profile.Name,
		Target:    sess.Target,
		StartedAt: sess.StartedAt,
		Terminal:  sess.Terminal,
	}
	if sess.Profile.PersistLog {
		path := filepath.Join(c.opts.Destination, capture.LogFileName(sess.Profile.LogPrefix, sess.StartedAt))
		written, flushErr := sess.Log.Flush(path)
		if flushErr != nil {
			logger.Error("session log not written", zap.String("path", path), zap.Error(flushErr))
			out.Errorf("Could not write session log: %v", flushErr)
			res.FlushErr = flushErr
		} else {
			out.Statusf("Saved %d events to %s", sess.Log.Len(), written)
			res.LogPath = written
		}
	}

	res.Records = sess.Log.Records()
	res.Counts = sess.Log.Counts()
	if interceptor != nil {
		res.Downloads = interceptor.Saved()
		res.DownloadsFailed = interceptor.Failures()
	}
	res.EndedAt = c.opts.Now()

	c.release(logger)
	c.archive(logger, res)
	return res, nil
}

// waitForTerminal polls liveness until the window goes away or ctx ends.
func (c *Controller) waitForTerminal(ctx context.Context) TerminalState {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TerminalInterrupted
		case <-ticker.C:
			if !c.browser.Alive() {
				return TerminalClosedByOperator
			}
		}
	}
}

// release shuts the browser down. Shutdown is idempotent so the deferred call
// after an explicit release is harmless.
func (c *Controller) release(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.browser.Shutdown(ctx); err != nil {
		logger.Warn("browser shutdown", zap.Error(err))
	}
}

func (c *Controller) archive(logger *zap.Logger, res *Result) {
	if c.opts.Recorder == nil {
		return
	}
	sum := archive.Summary{
		SessionID:       res.SessionID,
		Profile:         res.Profile,
		Target:          res.Target,
		StartedAt:       res.StartedAt,
		EndedAt:         res.EndedAt,
		Terminal:        string(res.Terminal),
		LogPath:         res.LogPath,
		Records:         len(res.Records),
		Counts:          make(map[string]int, len(res.Counts)),
		DownloadsSaved:  len(res.Downloads),
		DownloadsFailed: res.DownloadsFailed,
	}
	for cat, n := range res.Counts {
		sum.Counts[string(cat)] = n
	}
	if res.FlushErr != nil {
		sum.FlushError = res.FlushErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.opts.Recorder.Record(ctx, sum); err != nil {
		logger.Warn("session not archived", zap.Error(err))
		c.opts.Console.Errorf("Could not archive session: %v", err)
	}
}
