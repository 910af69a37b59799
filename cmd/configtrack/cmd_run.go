package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"configtrack/internal/archive"
	"configtrack/internal/browser"
	"configtrack/internal/capture"
	"configtrack/internal/config"
	"configtrack/internal/console"
	"configtrack/internal/logging"
	"configtrack/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [target]",
	Short: "Open the tutorial and capture a session until the browser is closed",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSession,
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("profile", "", "Capture profile (config-tracker, click-tracker, viewer)")
	cmd.Flags().String("dest", "", "Directory for session logs and downloads (must exist)")
	cmd.Flags().Bool("headless", false, "Run Chrome without a window")
	cmd.Flags().Duration("poll-interval", 0, "How often to check whether the browser is still open")
	cmd.Flags().String("browser-bin", "", "Chrome/Chromium executable")
}

// applyRunFlags layers explicitly set run flags and the positional target over cfg.
func applyRunFlags(cmd *cobra.Command, args []string, c *config.Config) error {
	flags := cmd.Flags()
	if len(args) == 1 {
		c.Target = args[0]
	}
	if flags.Changed("profile") {
		v, err := flags.GetString("profile")
		if err != nil {
			return err
		}
		c.Profile = v
	}
	if flags.Changed("dest") {
		v, err := flags.GetString("dest")
		if err != nil {
			return err
		}
		c.Destination = v
	}
	if flags.Changed("headless") {
		v, err := flags.GetBool("headless")
		if err != nil {
			return err
		}
		c.Browser.Headless = v
	}
	if flags.Changed("poll-interval") {
		v, err := flags.GetDuration("poll-interval")
		if err != nil {
			return err
		}
		c.Session.PollInterval = v.String()
	}
	if flags.Changed("browser-bin") {
		v, err := flags.GetString("browser-bin")
		if err != nil {
			return err
		}
		c.Browser.Bin = v
	}
	return nil
}

// browserConfig maps the YAML browser section onto the rod driver config.
func browserConfig(c *config.Config) browser.Config {
	bc := browser.DefaultConfig()
	bc.DebuggerURL = c.Browser.DebuggerURL
	bc.Bin = c.Browser.Bin
	bc.Flags = c.Browser.Flags
	bc.Headless = c.Browser.Headless
	bc.ViewportWidth = c.Browser.ViewportWidth
	bc.ViewportHeight = c.Browser.ViewportHeight
	bc.NavigationTimeoutMs = int(c.GetNavigationTimeout() / time.Millisecond)
	bc.IdleWindowMs = int(c.GetIdleWindow() / time.Millisecond)
	return bc
}

func runSession(cmd *cobra.Command, args []string) error {
	if err := applyRunFlags(cmd, args, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	profile, err := cfg.GetProfile()
	if err != nil {
		return err
	}

	out := console.New(cmd.OutOrStdout())
	sessionLog := logging.For(logger, cfg.Logging, logging.CategorySession)

	opts := session.Options{
		Profile:         profile,
		Target:          cfg.Target,
		Destination:     cfg.Destination,
		PollInterval:    cfg.GetPollInterval(),
		QueueSize:       cfg.Session.QueueSize,
		RecordDownloads: cfg.Session.RecordDownloads,
		Console:         out,
		Logger:          sessionLog,
		CaptureLogger:   logging.For(logger, cfg.Logging, logging.CategoryCapture),
	}

	if cfg.Archive.Enabled {
		archiveLog := logging.For(logger, cfg.Logging, logging.CategoryArchive)
		store, err := archive.Open(cfg.Archive.Path, cfg.Archive.Driver)
		if err != nil {
			// History is optional; the session still runs.
			archiveLog.Warn("archive unavailable", zap.Error(err))
			out.Errorf("Session history disabled: %v", err)
		} else {
			defer store.Close()
			archiveLog.Debug("archive opened", zap.String("path", store.Path()), zap.String("driver", cfg.Archive.Driver))
			opts.Recorder = store
		}
	}

	mgr := browser.NewManager(browserConfig(cfg), logging.For(logger, cfg.Logging, logging.CategoryBrowser))
	ctrl := session.NewController(mgr, opts)

	ctx, stop := interruptContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionLog.Info("starting session",
		zap.String("profile", profile.Name),
		zap.String("target", cfg.Target),
		zap.String("destination", cfg.Destination))

	res, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(out, res)
	if res.FlushErr != nil {
		return fmt.Errorf("session log not saved: %w", res.FlushErr)
	}
	return nil
}

// interruptContext is cancelled by the first of sigs. Capture of sigs ends
// there, so a second signal gets the default handling and can kill a stuck
// shutdown.
func interruptContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

func printSummary(out *console.Console, res *session.Result) {
	out.Statusf("Session %s ended (%s)", res.SessionID, res.Terminal)
	for _, c := range capture.Categories {
		if n := res.Counts[c]; n > 0 {
			out.Statusf("  %-12s %d", c, n)
		}
	}
	for _, f := range res.Downloads {
		out.Statusf("  saved %s", f.SavedPath)
	}
	if res.DownloadsFailed > 0 {
		out.Errorf("%d download(s) could not be saved", res.DownloadsFailed)
	}
}
