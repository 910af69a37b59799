// Package browser drives the controlled Chrome instance of a capture session through
// rod: launch or attach, viewport, console and download event pumps, navigation with a
// network-idle wait, and liveness probing.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"configtrack/internal/capture"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string
	Bin                 string
	Flags               []string
	Headless            bool
	ViewportWidth       int
	ViewportHeight      int
	NavigationTimeoutMs int
	IdleWindowMs        int
	ProbeTimeoutMs      int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		IdleWindowMs:        500,
		ProbeTimeoutMs:      2000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout bounds navigation plus the network-idle wait.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// IdleWindow is how long the network must stay quiet to count as idle.
func (c Config) IdleWindow() time.Duration {
	if c.IdleWindowMs == 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.IdleWindowMs) * time.Millisecond
}

// ProbeTimeout bounds a single liveness probe.
func (c Config) ProbeTimeout() time.Duration {
	if c.ProbeTimeoutMs == 0 {
		return 2 * time.Second
	}
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// Manager owns one Chrome connection and the single page a session drives.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	launch   *launcher.Launcher // nil when attached via DebuggerURL
	browser  *rod.Browser
	page     *rod.Page
	staging  string
	pumps    *errgroup.Group
	stopPump context.CancelFunc
	closed   bool
}

// NewManager creates a manager. Nothing is launched until Start.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome or launches a new one, then opens the
// session page with the configured viewport.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return nil
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		for _, rawFlag := range m.cfg.Flags {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		m.launch = l
		controlURL = u
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	b := rod.New().ControlURL(controlURL).Context(m.ctx)
	if err := b.Connect(); err != nil {
		m.releaseLocked(ctx)
		return fmt.Errorf("connect to chrome: %w", err)
	}
	m.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		m.releaseLocked(ctx)
		return fmt.Errorf("create page: %w", err)
	}
	m.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.logger.Warn("failed to set viewport", zap.Error(err))
	}

	m.logger.Info("browser connected",
		zap.Bool("launched", m.launch != nil),
		zap.Int("width", m.cfg.GetViewportWidth()),
		zap.Int("height", m.cfg.GetViewportHeight()))
	return nil
}

// Listen routes page console messages and browser downloads to pub. It must be
// called before Navigate so no early event is missed.
func (m *Manager) Listen(pub capture.Publisher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page == nil {
		return errors.New("browser not started")
	}
	if m.pumps != nil {
		return errors.New("already listening")
	}

	staging, err := os.MkdirTemp("", "configtrack-downloads-")
	if err != nil {
		return fmt.Errorf("create download staging dir: %w", err)
	}
	m.staging = staging

	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllowAndName,
		DownloadPath:  staging,
		EventsEnabled: true,
	}).Call(m.browser); err != nil {
		return fmt.Errorf("configure download behavior: %w", err)
	}

	pumpCtx, stop := context.WithCancel(m.ctx)
	m.stopPump = stop

	waitConsole := m.page.Context(pumpCtx).EachEvent(func(ev *proto.RuntimeConsoleAPICalled) {
		pub.Publish(capture.ConsoleNotification(string(ev.Type), stringifyConsoleArgs(ev.Args)))
	})

	// Both callbacks run on the same pump goroutine; pending needs no lock.
	pending := make(map[string]string)
	waitDownloads := m.browser.Context(pumpCtx).EachEvent(
		func(ev *proto.BrowserDownloadWillBegin) {
			pending[ev.GUID] = ev.SuggestedFilename
			m.logger.Debug("download started", zap.String("guid", ev.GUID), zap.String("name", ev.SuggestedFilename))
		},
		func(ev *proto.BrowserDownloadProgress) {
			name, ok := pending[ev.GUID]
			if !ok {
				return
			}
			switch ev.State {
			case proto.BrowserDownloadProgressStateCompleted:
				delete(pending, ev.GUID)
				pub.Publish(capture.DownloadNotification(capture.Download{
					SuggestedName: name,
					Open:          stagedOpener(filepath.Join(staging, ev.GUID)),
				}))
			case proto.BrowserDownloadProgressStateCanceled:
				delete(pending, ev.GUID)
				pub.Publish(capture.DownloadNotification(capture.Download{
					SuggestedName: name,
					Open: func() (io.ReadCloser, error) {
						return nil, errors.New("download canceled")
					},
				}))
			}
		},
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		waitConsole()
		return nil
	})
	g.Go(func() error {
		waitDownloads()
		return nil
	})
	m.pumps = g
	return nil
}

// Navigate loads target and waits for the network to go idle, bounded by the
// navigation timeout. There is no retry.
func (m *Manager) Navigate(ctx context.Context, target string) error {
	m.mu.RLock()
	page := m.page
	m.mu.RUnlock()
	if page == nil {
		return errors.New("browser not started")
	}

	u, err := TargetURL(target)
	if err != nil {
		return err
	}

	p := page.Context(ctx).Timeout(m.cfg.NavigationTimeout())
	defer p.CancelTimeout()

	waitIdle := p.WaitRequestIdle(m.cfg.IdleWindow(), nil, nil, nil)
	if err := p.Navigate(u); err != nil {
		return fmt.Errorf("navigate %s: %w", u, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load of %s: %w", u, err)
	}
	waitIdle()
	if err := p.GetContext().Err(); err != nil {
		return fmt.Errorf("wait for network idle on %s: %w", u, err)
	}
	m.logger.Info("target loaded", zap.String("url", u))
	return nil
}

// Alive reports whether the session page still exists.
func (m *Manager) Alive() bool {
	m.mu.RLock()
	page := m.page
	closed := m.closed
	m.mu.RUnlock()
	if page == nil || closed {
		return false
	}

	p := page.Timeout(m.cfg.ProbeTimeout())
	defer p.CancelTimeout()
	if _, err := p.Info(); err != nil {
		m.logger.Debug("liveness probe failed", zap.Error(err))
		return false
	}
	return true
}

// Shutdown stops the event pumps and releases the browser. ctx bounds the wait
// for the pumps and the CDP close calls; the launched process is killed
// regardless. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.releaseLocked(ctx)
}

// releaseLocked tears down whatever Start and Listen acquired. Caller must hold the lock.
func (m *Manager) releaseLocked(ctx context.Context) error {
	var errs []error

	if m.stopPump != nil {
		m.stopPump()
	}
	if m.pumps != nil {
		done := make(chan struct{})
		go func(g *errgroup.Group) {
			_ = g.Wait()
			close(done)
		}(m.pumps)
		select {
		case <-done:
		case <-ctx.Done():
			m.logger.Warn("event pumps still running at shutdown", zap.Error(ctx.Err()))
		}
	}

	if m.browser != nil {
		if m.launch != nil {
			if err := m.browser.Context(ctx).Close(); err != nil {
				// Expected when the operator already closed the window.
				m.logger.Debug("browser close", zap.Error(err))
			}
		} else if m.page != nil {
			// Attached to someone else's Chrome: only close our page.
			if err := m.page.Context(ctx).Close(); err != nil {
				m.logger.Debug("page close", zap.Error(err))
			}
		}
	}
	if m.cancel != nil {
		m.cancel()
	}
	if m.launch != nil {
		m.launch.Kill()
		m.launch.Cleanup()
	}
	if m.staging != "" {
		if err := os.RemoveAll(m.staging); err != nil {
			errs = append(errs, fmt.Errorf("remove download staging dir: %w", err))
		}
	}

	m.browser = nil
	m.page = nil
	m.launch = nil
	m.pumps = nil
	m.stopPump = nil
	m.staging = ""
	return errors.Join(errs...)
}

// TargetURL turns a local path into a file:// URL and passes URLs through.
func TargetURL(target string) (string, error) {
	if target == "" {
		return "", errors.New("empty target")
	}
	if u, err := url.Parse(target); err == nil && len(u.Scheme) > 1 {
		return target, nil
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve target %s: %w", target, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String(), nil
}

func stagedOpener(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open staged download: %w", err)
		}
		return &stagedFile{File: f}, nil
	}
}

// stagedFile removes the staged copy once the interceptor is done with it.
type stagedFile struct {
	*os.File
}

func (s *stagedFile) Close() error {
	err := s.File.Close()
	_ = os.Remove(s.Name())
	return err
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
