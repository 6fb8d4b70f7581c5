package ingest

import (
	"regexp"
	"strings"
	"time"

	"github.com/writeuphq/writeupd/internal/store"
	"github.com/writeuphq/writeupd/pkg/feed"
)

var bountyStrip = regexp.MustCompile(`[^0-9.\-]+`)

// NormalizeBounty reduces a raw bounty string to digits, dots and dashes.
// Ranges like "1000-2000" are kept; a placeholder or a result without a
// single digit means the bounty is unknown and stores as NULL.
func NormalizeBounty(raw string) *string {
	if raw == feed.Placeholder {
		return nil
	}
	stripped := bountyStrip.ReplaceAllString(raw, "")
	if stripped == "" || !strings.ContainsAny(stripped, "0123456789") {
		return nil
	}
	return &stripped
}

// ClassifySeverity buckets a free-form severity string by case-insensitive
// substring match, highest bucket first.
func ClassifySeverity(raw string) string {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "critical"):
		return store.SeverityCritical
	case strings.Contains(s, "high"):
		return store.SeverityHigh
	case strings.Contains(s, "medium"):
		return store.SeverityMedium
	case strings.Contains(s, "low"):
		return store.SeverityLow
	default:
		return store.SeverityNone
	}
}

// ClassifySource maps a record to a known source. An exact token wins;
// otherwise the link decides, defaulting to pentesterland.
func ClassifySource(token, link string) string {
	switch token {
	case store.SourceHackerOne:
		return store.SourceHackerOne
	case store.SourcePentesterland:
		return store.SourcePentesterland
	}
	if strings.Contains(link, "hackerone.com") {
		return store.SourceHackerOne
	}
	return store.SourcePentesterland
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"02 Jan 2006",
}

// ParseDate parses the date formats seen in the feeds. A placeholder or
// unparseable value stores as NULL.
func ParseDate(raw string) *time.Time {
	if raw == "" || raw == feed.Placeholder {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
