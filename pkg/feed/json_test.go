package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJSONFetch(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"data": [
		{
			"Links": [{"Title": "SSRF in Acme", "Link": "https://x/1"}],
			"Authors": ["alice"],
			"Programs": ["acme"],
			"Bugs": ["ssrf"],
			"Bounty": "$500",
			"Severity": "High",
			"PublicationDate": "2024-03-01",
			"AddedDate": "2024-03-02",
			"Summary": "Internal metadata endpoint reachable."
		}
	]}`)

	records, err := NewJSON("test", srv.URL, "pentesterland").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	primary, ok := rec.Primary()
	require.True(t, ok)
	assert.Equal(t, "SSRF in Acme", primary.Title)
	assert.Equal(t, "https://x/1", primary.Link)
	assert.Equal(t, []string{"alice"}, rec.Authors)
	assert.Equal(t, "$500", rec.Bounty)
	assert.Equal(t, "High", rec.Severity)
	// Records with no source field take the feed's default.
	assert.Equal(t, "pentesterland", rec.Source)
}

func TestJSONFetchDefaults(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"data": [
		{"Links": [{"Title": "Bare record", "Link": "https://x/2"}]}
	]}`)

	records, err := NewJSON("test", srv.URL, "").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, Placeholder, rec.Bounty)
	assert.Equal(t, "Unknown", rec.Severity)
	assert.Equal(t, Placeholder, rec.PublicationDate)
	assert.Equal(t, Placeholder, rec.AddedDate)
	assert.Equal(t, Placeholder, rec.Summary)
	assert.Empty(t, rec.Source)
}

func TestJSONFetchMissingData(t *testing.T) {
	for name, body := range map[string]string{
		"absent":    `{}`,
		"null":      `{"data": null}`,
		"not array": `{"data": {"oops": true}}`,
		"string":    `{"data": "nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := serveJSON(t, http.StatusOK, body)
			records, err := NewJSON("test", srv.URL, "").Fetch(context.Background())
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestJSONFetchDropsMalformedRecords(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"data": [
		{"Links": "not a list"},
		{"Links": [{"Title": "Good", "Link": "https://x/3"}], "Authors": ["", "bob"]},
		{"Links": [{"Title": "Kept", "Link": "https://x/4"}]}
	]}`)

	records, err := NewJSON("test", srv.URL, "").Fetch(context.Background())
	require.NoError(t, err)
	// First record is ill-typed, second carries an empty tag value;
	// only the third survives.
	require.Len(t, records, 1)
	primary, _ := records[0].Primary()
	assert.Equal(t, "Kept", primary.Title)
}

func TestJSONFetchStatusError(t *testing.T) {
	srv := serveJSON(t, http.StatusBadGateway, `{}`)

	_, err := NewJSON("test", srv.URL, "").Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestJSONFetchBadEnvelope(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"data": [`)

	_, err := NewJSON("test", srv.URL, "").Fetch(context.Background())
	require.Error(t, err)
}

func TestPrimary(t *testing.T) {
	_, ok := Record{}.Primary()
	assert.False(t, ok)

	_, ok = Record{Links: []Link{{Title: "t"}}}.Primary()
	assert.False(t, ok)

	_, ok = Record{Links: []Link{{Link: "https://x"}}}.Primary()
	assert.False(t, ok)

	p, ok := Record{Links: []Link{{Title: "t", Link: "https://x"}, {Title: "second", Link: "https://y"}}}.Primary()
	require.True(t, ok)
	assert.Equal(t, "https://x", p.Link)
}

func TestIsPlaceholderTag(t *testing.T) {
	assert.True(t, IsPlaceholderTag("-"))
	assert.True(t, IsPlaceholderTag(""))
	assert.True(t, IsPlaceholderTag("   "))
	assert.False(t, IsPlaceholderTag("alice"))
}
