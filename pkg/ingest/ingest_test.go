package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writeuphq/writeupd/internal/store"
	"github.com/writeuphq/writeupd/pkg/feed"
)

func newTestEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "writeupd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func record(title, link string) feed.Record {
	return feed.Record{
		Links:           []feed.Link{{Title: title, Link: link}},
		Bounty:          feed.Placeholder,
		Severity:        "Unknown",
		PublicationDate: feed.Placeholder,
		AddedDate:       feed.Placeholder,
		Summary:         feed.Placeholder,
	}
}

func TestRunCreatesWriteup(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	rec := record("SSRF via PDF renderer", "https://example.com/ssrf")
	rec.Authors = []string{"alice"}
	rec.Bugs = []string{"ssrf"}
	rec.Severity = "High (8.1)"
	rec.Bounty = "$2,500"
	rec.PublicationDate = "2024-03-01"
	rec.Summary = "Server fetched attacker URLs while rendering."

	created, err := e.Run(ctx, []feed.Record{rec})
	require.NoError(t, err)
	require.Len(t, created, 1)

	w := created[0]
	assert.NotZero(t, w.ID)
	assert.Equal(t, "SSRF via PDF renderer", w.Title)
	assert.Equal(t, store.SeverityHigh, w.Severity)
	assert.Equal(t, store.SourcePentesterland, w.Source)
	require.NotNil(t, w.Bounty)
	assert.Equal(t, "2500", *w.Bounty)
	require.NotNil(t, w.PublishedAt)
	assert.Nil(t, w.AddedAt)

	page, err := s.ListWriteups(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"alice"}, page.Items[0].Authors)
	assert.Empty(t, page.Items[0].Programs)
	assert.Equal(t, []string{"ssrf"}, page.Items[0].Bugs)
}

func TestRunIdempotent(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	rec := record("XSS in search", "https://example.com/xss")
	rec.Authors = []string{"bob"}

	created, err := e.Run(ctx, []feed.Record{rec})
	require.NoError(t, err)
	require.Len(t, created, 1)

	created, err = e.Run(ctx, []feed.Record{rec})
	require.NoError(t, err)
	assert.Empty(t, created)

	page, err := s.ListWriteups(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestRunHackerOneLinkClassified(t *testing.T) {
	e, _ := newTestEngine(t)

	rec := record("IDOR on invoices", "https://hackerone.com/reports/42")
	created, err := e.Run(context.Background(), []feed.Record{rec})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, store.SourceHackerOne, created[0].Source)
}

func TestRunDropsPlaceholderTags(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	rec := record("RCE in importer", "https://example.com/rce")
	rec.Authors = []string{"-", "   ", "carol"}
	rec.Programs = []string{"-"}

	created, err := e.Run(ctx, []feed.Record{rec})
	require.NoError(t, err)
	require.Len(t, created, 1)

	authors, err := s.ListTagNames(ctx, store.TagAuthor, store.TagListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, authors.Names)

	programs, err := s.ListTagNames(ctx, store.TagProgram, store.TagListOpts{})
	require.NoError(t, err)
	assert.Empty(t, programs.Names)
}

func TestRunDuplicateTagWithinRecord(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	rec := record("CSRF on settings", "https://example.com/csrf")
	rec.Authors = []string{"dave", "dave"}

	_, err := e.Run(ctx, []feed.Record{rec})
	require.NoError(t, err)

	page, err := s.ListWriteups(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"dave"}, page.Items[0].Authors)
}

func TestRunDuplicateLinkWithinBatch(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	first := record("Race condition in checkout", "https://example.com/race")
	second := record("Race condition in checkout (mirror)", "https://example.com/race")

	created, err := e.Run(ctx, []feed.Record{first, second})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Race condition in checkout", created[0].Title)

	page, err := s.ListWriteups(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestRunRecordWithoutPrimaryLink(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// Tag entities still get created even when the record itself
	// cannot be stored for lack of a title/link pair.
	rec := feed.Record{
		Links:   []feed.Link{{Title: "Untitled", Link: ""}},
		Authors: []string{"erin"},
	}

	created, err := e.Run(ctx, []feed.Record{rec})
	require.NoError(t, err)
	assert.Empty(t, created)

	page, err := s.ListWriteups(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	authors, err := s.ListTagNames(ctx, store.TagAuthor, store.TagListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"erin"}, authors.Names)
}

func TestRunEmptyBatch(t *testing.T) {
	e, _ := newTestEngine(t)

	created, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, created)
}

type stubFeed struct {
	name    string
	records []feed.Record
	err     error
}

func (f *stubFeed) Name() string { return f.name }

func (f *stubFeed) Fetch(ctx context.Context) ([]feed.Record, error) {
	return f.records, f.err
}

func TestIngestFeed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := e.IngestFeed(ctx, &stubFeed{
		name:    "test",
		records: []feed.Record{record("Open redirect", "https://example.com/redir")},
	})
	require.NoError(t, err)
	assert.Len(t, created, 1)

	broken := errors.New("boom")
	_, err = e.IngestFeed(ctx, &stubFeed{name: "down", err: broken})
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)
	assert.Contains(t, err.Error(), "ingest down")
}
