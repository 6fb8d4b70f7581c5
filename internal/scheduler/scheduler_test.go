package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writeuphq/writeupd/internal/store"
	"github.com/writeuphq/writeupd/pkg/alert"
	"github.com/writeuphq/writeupd/pkg/feed"
	"github.com/writeuphq/writeupd/pkg/ingest"
)

type stubFeed struct {
	name    string
	records []feed.Record
	err     error
}

func (f *stubFeed) Name() string { return f.name }

func (f *stubFeed) Fetch(ctx context.Context) ([]feed.Record, error) {
	return f.records, f.err
}

type captureNotifier struct {
	sent []*alert.Notification
}

func (n *captureNotifier) Name() string { return "capture" }

func (n *captureNotifier) Send(ctx context.Context, note *alert.Notification) error {
	n.sent = append(n.sent, note)
	return nil
}

func TestIngestAllFeedsFailIndependently(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "writeupd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	bad := &stubFeed{name: "bad", err: errors.New("connection refused")}
	good := &stubFeed{
		name: "good",
		records: []feed.Record{{
			Links:           []feed.Link{{Title: "SSRF in Acme", Link: "https://x/1"}},
			Bounty:          feed.Placeholder,
			Severity:        "Unknown",
			PublicationDate: feed.Placeholder,
			AddedDate:       feed.Placeholder,
			Summary:         feed.Placeholder,
		}},
	}
	notifier := &captureNotifier{}

	// The failing feed comes first; the good one must still ingest.
	sched := New(ingest.New(s), []feed.Feed{bad, good}, alert.NewManager([]alert.Notifier{notifier}), time.Hour)
	sched.ingestAll(context.Background())

	page, err := s.ListWriteups(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "good", notifier.sent[0].Feed)
	assert.Equal(t, 1, notifier.sent[0].Created)

	// A second pass finds nothing new and stays quiet.
	sched.ingestAll(context.Background())
	assert.Len(t, notifier.sent, 1)
}
