package targetscraper

import (
	"damadam-scraper/lib/textutil"
	"strings"
)

// Status is the lifecycle state of a Target row.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusProcessing:
		return "Processing"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	}
	return "Unknown"
}

// Terminal reports whether no further automatic transition happens.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var statusMarkers = []struct {
	marker string
	status Status
}{
	{"pending", StatusPending},
	{"processing", StatusProcessing},
	{"completed", StatusCompleted},
	{"complete", StatusCompleted},
	{"done", StatusCompleted},
	{"failed", StatusFailed},
	{"error", StatusFailed},
}

// ParseStatus maps a hand edited status cell onto a Status. Emoji and
// punctuation are ignored and the match is a case insensitive substring,
// so "⏳ Pending!!" and "pending 🚨" are both pending. urgent is set for
// cells flagged with 🚨 or the word "urgent".
func ParseStatus(raw string) (status Status, urgent bool) {
	urgent = strings.Contains(raw, "🚨") || strings.Contains(strings.ToLower(raw), "urgent")

	normalized := strings.ToLower(textutil.StripDecorations(raw))
	if normalized == "" {
		return StatusUnknown, urgent
	}
	for _, m := range statusMarkers {
		if strings.Contains(normalized, m.marker) {
			return m.status, urgent
		}
	}
	return StatusUnknown, urgent
}
