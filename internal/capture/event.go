// Package capture turns the runtime signals of a tutorial page (console lines and file
// downloads) into an ordered, append-only session log.
package capture

import (
	"fmt"
	"io"
	"time"
)

// Category is the event taxonomy of the session log.
type Category string

const (
	CategoryStepChange Category = "step_change" // tutorial progression
	CategoryPosition   Category = "position"    // modal / highlight placement
	CategoryExport     Category = "export"      // config export and download chatter
	CategoryDownload   Category = "download"    // a file the page emitted
	CategoryRaw        Category = "raw"         // unclassified line kept verbatim
)

// Categories lists every category in classification precedence order,
// followed by the categories the classifier never produces.
var Categories = []Category{
	CategoryStepChange,
	CategoryExport,
	CategoryPosition,
	CategoryDownload,
	CategoryRaw,
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown event category %q", s)
}

// Record is one entry of the session log. Records are values: once appended
// they are never reclassified or mutated.
type Record struct {
	Category   Category  `json:"event"`
	Message    string    `json:"message"`
	CapturedAt time.Time `json:"time"`
}

// DownloadedFile describes a file persisted by the DownloadInterceptor.
type DownloadedFile struct {
	SuggestedName string    `json:"suggested_name"`
	SavedPath     string    `json:"saved_path"`
	CapturedAt    time.Time `json:"captured_at"`
}

// ConsoleMessage is a single console API call from the page.
type ConsoleMessage struct {
	Severity string // log, info, warning, error, debug, ...
	Text     string
}

// Download is a file-emission notification. Open materializes the bytes.
type Download struct {
	SuggestedName string
	Open          func() (io.ReadCloser, error)
}

// Notification is the unit carried by the Dispatcher. Exactly one of
// Console or Download is set.
type Notification struct {
	Console  *ConsoleMessage
	Download *Download
}

// ConsoleNotification wraps a console message for publishing.
func ConsoleNotification(severity, text string) Notification {
	return Notification{Console: &ConsoleMessage{Severity: severity, Text: text}}
}

// DownloadNotification wraps a download for publishing.
func DownloadNotification(d Download) Notification {
	return Notification{Download: &d}
}
