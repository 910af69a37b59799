package capture

import (
	"strings"
	"time"
)

// Mode selects how console lines are retained in the session log.
type Mode string

const (
	ModeClassified Mode = "classified" // keep lines that match the taxonomy
	ModeRaw        Mode = "raw"        // keep every line as CategoryRaw
	ModeMirror     Mode = "mirror"     // keep nothing, only mirror to the console
)

// ParseMode validates a mode name. An empty name is ModeClassified.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(s)) {
	case ModeClassified, "":
		return ModeClassified, true
	case ModeRaw:
		return ModeRaw, true
	case ModeMirror:
		return ModeMirror, true
	}
	return "", false
}

// rule maps substrings to a category. Exact substrings are matched as-is,
// folded substrings against the lower-cased line.
type rule struct {
	category Category
	exact    []string
	folded   []string
}

// rules is evaluated top to bottom; the first matching rule wins.
// Export runs before position so export chatter that mentions a highlight
// or a saved file is never filed as a position update.
var rules = []rule{
	{category: CategoryStepChange, exact: []string{"Step changed"}, folded: []string{"current step"}},
	{category: CategoryExport, folded: []string{"export", "download"}},
	{category: CategoryPosition, folded: []string{"position", "saved", "highlight"}},
}

// Classify maps a console line to at most one record. It never fails:
// lines that match no rule, including the empty line, yield false.
func Classify(text string, at time.Time) (Record, bool) {
	c, ok := CategoryOf(text)
	if !ok {
		return Record{}, false
	}
	return Record{Category: c, Message: text, CapturedAt: at}, true
}

// CategoryOf returns the category a line would be classified under.
func CategoryOf(text string) (Category, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, s := range r.exact {
			if strings.Contains(text, s) {
				return r.category, true
			}
		}
		for _, s := range r.folded {
			if strings.Contains(lower, s) {
				return r.category, true
			}
		}
	}
	return "", false
}

// ClassifyRaw keeps every line verbatim as CategoryRaw.
func ClassifyRaw(text string, at time.Time) (Record, bool) {
	return Record{Category: CategoryRaw, Message: text, CapturedAt: at}, true
}

// classifierFor returns the classification function for a mode, or nil
// when the mode retains nothing.
func classifierFor(m Mode) func(string, time.Time) (Record, bool) {
	switch m {
	case ModeRaw:
		return ClassifyRaw
	case ModeMirror:
		return nil
	default:
		return Classify
	}
}
