package feed

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// displayLayout renders timestamps like "01 March 2024 - 10:15 AM".
const displayLayout = "02 January 2006 - 03:04 PM"

// Formatter renders stored records as display strings. It is total: every
// record value maps to exactly one string, and malformed records degrade to
// sentinel text so a single bad row cannot block the rest of the feed.
type Formatter struct {
	logger *log.Logger
}

// NewFormatter creates a Formatter. Diagnostics for malformed records are
// written to logger; nil falls back to the process default logger.
func NewFormatter(logger *log.Logger) *Formatter {
	if logger == nil {
		logger = log.Default()
	}
	return &Formatter{logger: logger}
}

// Format returns the display string for one record. It never fails.
func (f *Formatter) Format(rec Record) string {
	if rec.Author == "" || rec.Action == "" {
		return f.dataError(rec, "author or action missing")
	}
	if rec.Timestamp == "" {
		return "Event with missing timestamp"
	}
	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return f.dataError(rec, err.Error())
	}
	display := ts.Format(displayLayout) + " UTC"

	switch rec.Action {
	case ActionPush:
		return fmt.Sprintf("%s pushed to %s on %s", rec.Author, rec.ToBranch, display)
	case ActionPullRequest:
		return fmt.Sprintf("%s submitted a pull request from %s to %s on %s", rec.Author, rec.FromBranch, rec.ToBranch, display)
	case ActionMerge:
		return fmt.Sprintf("%s merged branch %s to %s on %s", rec.Author, rec.FromBranch, rec.ToBranch, display)
	default:
		return fmt.Sprintf("Unknown action: %s by %s", rec.Action, rec.Author)
	}
}

// FormatAll maps records to display strings, preserving order.
func (f *Formatter) FormatAll(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, f.Format(rec))
	}
	return out
}

// parseTimestamp accepts ISO-8601 values with either a trailing Z or a
// numeric offset. The offset is preserved as sent; no conversion happens
// before formatting.
func parseTimestamp(value string) (time.Time, error) {
	if strings.HasSuffix(value, "Z") {
		value = strings.TrimSuffix(value, "Z") + "+00:00"
	}
	return time.Parse("2006-01-02T15:04:05-07:00", value)
}

func (f *Formatter) dataError(rec Record, reason string) string {
	id := rec.RequestID
	if id == "" {
		id = "Unknown ID"
	}
	f.logger.Printf("format failed (%s): %+v", reason, rec)
	return fmt.Sprintf("Could not display event due to a data error: %s", id)
}
