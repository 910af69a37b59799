package config

import (
	"fmt"
	"sort"

	"configtrack/internal/capture"
)

// Built-in profile names.
const (
	ProfileConfigTracker = "config-tracker"
	ProfileClickTracker  = "click-tracker"
	ProfileViewer        = "viewer"
)

// Profile describes what a session captures and how the operator is guided.
type Profile struct {
	Name        string
	Description string

	Mode       capture.Mode
	Downloads  bool   // intercept page downloads
	PersistLog bool   // flush the session log on termination
	LogPrefix  string // session log file name prefix

	Title        string
	Instructions string
}

const configTrackerInstructions = `
  INSTRUCTIONS:

  1. Click "Start Training" to begin the tour

  2. Press Ctrl+Shift+P to activate CONFIG MODE
     - A gold highlight box appears
     - The status indicator shows "CONFIG MODE ACTIVE"

  3. For EACH of the 7 steps:
     a) DRAG THE MODAL to position it where you want
     b) DRAG THE HIGHLIGHT BOX to spotlight the target area
     c) RESIZE the highlight by dragging its corners
     d) SCROLL the page if needed
     e) Click "Next" to advance

  4. After all 7 steps, press Ctrl+Shift+S to EXPORT
     - The JSON file is saved automatically

  5. Close the browser when done (the session log is written on close)

  STEPS: homepage > welcome-message > mentor-benefits >
         protege-benefits > summit > footer > complete
`

const clickTrackerInstructions = `
  Config Mode Controls:
    Ctrl+Shift+P  - Toggle Config Mode ON/OFF
    Ctrl+Shift+S  - Export positions to JSON

  When Config Mode is ON:
    - Drag modals to reposition
    - Drag/resize the gold highlight box
    - Scroll to adjust page position
    - Click 'Next' to move to the next step

  Press Ctrl+C here (or close the browser) when done.
`

const viewerInstructions = `
  Click Start Training and go through the tour.
  The spotlight should show on every step.
  Press Ctrl+C here (or close the browser) to exit.
`

var profiles = map[string]Profile{
	ProfileConfigTracker: {
		Name:         ProfileConfigTracker,
		Description:  "classify console events, save exported JSON, write config_log_*.json",
		Mode:         capture.ModeClassified,
		Downloads:    true,
		PersistLog:   true,
		LogPrefix:    "config_log",
		Title:        "Config Mode Tracker",
		Instructions: configTrackerInstructions,
	},
	ProfileClickTracker: {
		Name:         ProfileClickTracker,
		Description:  "keep every console line verbatim, write click_log_*.json",
		Mode:         capture.ModeRaw,
		Downloads:    false,
		PersistLog:   true,
		LogPrefix:    "click_log",
		Title:        "Click Tracking Active",
		Instructions: clickTrackerInstructions,
	},
	ProfileViewer: {
		Name:         ProfileViewer,
		Description:  "mirror console output only, persist nothing",
		Mode:         capture.ModeMirror,
		Downloads:    false,
		PersistLog:   false,
		Title:        "Tutorial Viewer",
		Instructions: viewerInstructions,
	},
}

// LookupProfile returns a built-in profile by name.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (valid: %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
