package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const fallbackDownloadName = "download"

// DownloadInterceptor persists files emitted by the page into a fixed
// destination directory under their suggested names.
type DownloadInterceptor struct {
	dest    string
	log     *Log
	record  bool
	console LiveConsole
	logger  *zap.Logger
	now     func() time.Time

	saved    []DownloadedFile
	failures int
}

// NewDownloadInterceptor creates an interceptor saving into dest. When
// recordDownloads is set, every saved file also lands in log as a
// CategoryDownload record.
func NewDownloadInterceptor(dest string, log *Log, recordDownloads bool, console LiveConsole, logger *zap.Logger) *DownloadInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadInterceptor{
		dest:    dest,
		log:     log,
		record:  recordDownloads,
		console: console,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the capture clock.
func (d *DownloadInterceptor) WithClock(now func() time.Time) *DownloadInterceptor {
	d.now = now
	return d
}

// HandleDownload implements DownloadHandler. A failed save is reported and
// counted; it never stops the session.
func (d *DownloadInterceptor) HandleDownload(dl Download) {
	name := SafeFileName(dl.SuggestedName)
	d.console.Statusf("DOWNLOAD: %s", name)

	path, err := d.save(name, dl)
	if err != nil {
		d.failures++
		d.console.Errorf("Could not save %s: %v", name, err)
		d.logger.Warn("download save failed", zap.String("name", name), zap.Error(err))
		return
	}

	at := d.now()
	d.saved = append(d.saved, DownloadedFile{SuggestedName: dl.SuggestedName, SavedPath: path, CapturedAt: at})
	d.console.Statusf("Saved to: %s", path)
	d.logger.Info("download saved", zap.String("name", name), zap.String("path", path))

	if d.record && d.log != nil {
		d.log.Append(Record{Category: CategoryDownload, Message: dl.SuggestedName, CapturedAt: at})
	}
}

func (d *DownloadInterceptor) save(name string, dl Download) (string, error) {
	if dl.Open == nil {
		return "", errors.New("download has no content")
	}
	info, err := os.Stat(d.dest)
	if err != nil {
		return "", fmt.Errorf("destination %s: %w", d.dest, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("destination %s is not a directory", d.dest)
	}

	src, err := dl.Open()
	if err != nil {
		return "", fmt.Errorf("open download: %w", err)
	}
	defer src.Close()

	path := filepath.Join(d.dest, name)
	// Same name, same file: the latest download wins.
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// Saved returns the files written so far, in arrival order.
func (d *DownloadInterceptor) Saved() []DownloadedFile {
	out := make([]DownloadedFile, len(d.saved))
	copy(out, d.saved)
	return out
}

// Failures returns the number of downloads that could not be saved.
func (d *DownloadInterceptor) Failures() int {
	return d.failures
}

// SafeFileName reduces a suggested name to a single path element.
func SafeFileName(suggested string) string {
	name := strings.ReplaceAll(suggested, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == ".." || name == "" {
		return fallbackDownloadName
	}
	return name
}
