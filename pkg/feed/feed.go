package feed

import (
	"context"
	"strings"
)

// Placeholder is the literal the upstream feeds use for "value unknown".
const Placeholder = "-"

// Link is one {title, url} pair attached to a writeup record.
// Only the first link of a record is authoritative.
type Link struct {
	Title string `json:"Title"`
	Link  string `json:"Link"`
}

// Record is the canonical writeup record every feed kind normalizes to.
// String fields carry Placeholder when the upstream has no value.
type Record struct {
	Links           []Link   `json:"Links"`
	Authors         []string `json:"Authors"`
	Programs        []string `json:"Programs"`
	Bugs            []string `json:"Bugs"`
	Bounty          string   `json:"Bounty"`
	Severity        string   `json:"Severity"`
	PublicationDate string   `json:"PublicationDate"`
	AddedDate       string   `json:"AddedDate"`
	Summary         string   `json:"Summary"`
	Source          string   `json:"source"`
}

// Primary returns the record's first title/link pair. ok is false when
// either half is missing, in which case the record cannot be stored.
func (r Record) Primary() (Link, bool) {
	if len(r.Links) == 0 {
		return Link{}, false
	}
	first := r.Links[0]
	if first.Title == "" || first.Link == "" {
		return Link{}, false
	}
	return first, true
}

// IsPlaceholderTag reports whether a tag value stands for "absent" and
// must never be persisted as an author/program/bug name.
func IsPlaceholderTag(name string) bool {
	return name == Placeholder || strings.TrimSpace(name) == ""
}

// Feed is the interface every writeup feed must implement.
type Feed interface {
	Name() string
	Fetch(ctx context.Context) ([]Record, error)
}
