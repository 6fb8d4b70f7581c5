package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/writeuphq/writeupd/pkg/alert"
	"github.com/writeuphq/writeupd/pkg/feed"
	"github.com/writeuphq/writeupd/pkg/ingest"
)

// Scheduler runs periodic feed ingestion.
type Scheduler struct {
	engine   *ingest.Engine
	feeds    []feed.Feed
	alertMgr *alert.Manager
	interval time.Duration
}

// New creates a new scheduler.
func New(engine *ingest.Engine, feeds []feed.Feed, alertMgr *alert.Manager, interval time.Duration) *Scheduler {
	if interval == 0 {
		interval = 6 * time.Hour
	}
	return &Scheduler{
		engine:   engine,
		feeds:    feeds,
		alertMgr: alertMgr,
		interval: interval,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial ingestion...")
	s.ingestAll(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (ingest every %s)\n", s.interval)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprintln(os.Stderr, "scheduler: ingesting...")
			s.ingestAll(ctx)
		}
	}
}

// ingestAll runs the pipeline over every feed. Feeds fail independently;
// a fetch or batch error is logged and the next feed proceeds.
func (s *Scheduler) ingestAll(ctx context.Context) {
	total := 0
	for _, f := range s.feeds {
		created, err := s.engine.IngestFeed(ctx, f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s error: %v\n", f.Name(), err)
			continue
		}

		fmt.Fprintf(os.Stderr, "  %s: %d new writeups\n", f.Name(), len(created))
		total += len(created)

		if len(created) == 0 || !s.alertMgr.HasNotifiers() {
			continue
		}
		notification := &alert.Notification{
			Feed:     f.Name(),
			Created:  len(created),
			Writeups: created,
		}
		if err := s.alertMgr.Broadcast(ctx, notification); err != nil {
			fmt.Fprintf(os.Stderr, "  alert error for %s: %v\n", f.Name(), err)
		}
	}
	fmt.Fprintf(os.Stderr, "  total: %d new writeups\n", total)
}
