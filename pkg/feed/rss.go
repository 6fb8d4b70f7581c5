package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
)

// RSS adapts an RSS/Atom disclosure stream to writeup records. Entry
// categories become bug tags and the entry author becomes the single
// author; bounty and program information is not available over RSS.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	name   string
	url    string
}

// NewRSS creates an RSS feed.
func NewRSS(name, url string) *RSS {
	return &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		name:   name,
		url:    url,
	}
}

func (r *RSS) Name() string { return r.name }

func (r *RSS) Fetch(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", r.name, err)
	}
	req.Header.Set("User-Agent", "writeupd/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", r.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("rss %s status %d", r.name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", r.name, err)
	}

	var records []Record
	for _, entry := range parsed.Items {
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if link == "" || entry.Title == "" {
			continue
		}

		published := Placeholder
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC().Format(time.RFC3339)
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC().Format(time.RFC3339)
		}

		var authors []string
		if entry.Author != nil && entry.Author.Name != "" {
			authors = append(authors, entry.Author.Name)
		}

		summary := Placeholder
		if entry.Description != "" {
			summary = truncate(entry.Description, 500)
		}

		records = append(records, Record{
			Links:           []Link{{Title: entry.Title, Link: link}},
			Authors:         authors,
			Bugs:            entry.Categories,
			Bounty:          Placeholder,
			Severity:        Placeholder,
			PublicationDate: published,
			AddedDate:       Placeholder,
			Summary:         summary,
		})
	}
	return records, nil
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
