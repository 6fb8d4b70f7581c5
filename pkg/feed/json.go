package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// JSONFeed fetches writeup records from an endpoint serving the
// pentester.land-style envelope: { "data": [ ...records... ] }.
type JSONFeed struct {
	client *http.Client
	name   string
	url    string
	source string
}

// NewJSON creates a JSON feed. source is the token stamped on records that
// carry no source field of their own; it may be empty, in which case the
// committer classifies by link.
func NewJSON(name, url, source string) *JSONFeed {
	return &JSONFeed{
		client: &http.Client{Timeout: 30 * time.Second},
		name:   name,
		url:    url,
		source: source,
	}
}

func (f *JSONFeed) Name() string { return f.name }

// Fetch retrieves and validates the feed. A network error or non-2xx
// response is fatal for the feed; a missing or ill-typed "data" member
// yields an empty batch; individual records that fail coercion are
// dropped silently.
func (f *JSONFeed) Fetch(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", f.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "writeupd/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feed %s status %d", f.name, resp.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", f.name, err)
	}

	// "data" missing or not an array means an empty feed, not an error.
	var raws []json.RawMessage
	if envelope.Data == nil || json.Unmarshal(envelope.Data, &raws) != nil {
		return nil, nil
	}

	var records []Record
	for _, raw := range raws {
		rec, err := coerceRecord(raw, f.source)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// rawRecord distinguishes absent fields from zero values so defaults can
// be applied the same way the upstream schema does.
type rawRecord struct {
	Links           []Link   `json:"Links"`
	Authors         []string `json:"Authors"`
	Programs        []string `json:"Programs"`
	Bugs            []string `json:"Bugs"`
	Bounty          *string  `json:"Bounty"`
	Severity        *string  `json:"Severity"`
	PublicationDate *string  `json:"PublicationDate"`
	AddedDate       *string  `json:"AddedDate"`
	Summary         *string  `json:"Summary"`
	Source          *string  `json:"source"`
}

func coerceRecord(raw json.RawMessage, defaultSource string) (Record, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("coerce record: %w", err)
	}

	// Tag lists may not contain empty strings.
	for _, list := range [][]string{r.Authors, r.Programs, r.Bugs} {
		for _, v := range list {
			if v == "" {
				return Record{}, fmt.Errorf("coerce record: empty tag value")
			}
		}
	}

	rec := Record{
		Links:           r.Links,
		Authors:         r.Authors,
		Programs:        r.Programs,
		Bugs:            r.Bugs,
		Bounty:          stringOr(r.Bounty, Placeholder),
		Severity:        stringOr(r.Severity, "Unknown"),
		PublicationDate: stringOr(r.PublicationDate, Placeholder),
		AddedDate:       stringOr(r.AddedDate, Placeholder),
		Summary:         stringOr(r.Summary, Placeholder),
		Source:          stringOr(r.Source, defaultSource),
	}
	return rec, nil
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
