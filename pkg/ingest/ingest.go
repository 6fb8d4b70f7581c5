// Package ingest implements the feed ingestion pipeline: reconciliation
// of incoming records against stored state, then a single-transaction
// commit of new writeups, tag entities and join rows.
package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/writeuphq/writeupd/internal/store"
	"github.com/writeuphq/writeupd/pkg/feed"
)

// Engine is the canonical ingestion pipeline, shared by the CLI, the
// scheduler and the HTTP trigger.
type Engine struct {
	store store.Store
}

// New creates an ingestion engine over a store.
func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// batch carries the reconciliation state through the pipeline stages.
// All dedup reads happen once, before the transaction begins.
type batch struct {
	records  []feed.Record
	newNames map[store.TagKind][]string
	tagIDs   map[store.TagKind]map[string]int64
}

// IngestFeed fetches one feed and runs the pipeline over its records.
func (e *Engine) IngestFeed(ctx context.Context, f feed.Feed) ([]store.Writeup, error) {
	records, err := f.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", f.Name(), err)
	}
	return e.Run(ctx, records)
}

// Run reconciles records against the database and commits whatever is
// new. It returns the created writeups; an empty result means the feed
// held no new items.
func (e *Engine) Run(ctx context.Context, records []feed.Record) ([]store.Writeup, error) {
	b, err := e.reconcile(ctx, records)
	if err != nil {
		return nil, err
	}
	if len(b.records) == 0 {
		return nil, nil
	}
	return e.commit(ctx, b)
}

// reconcile loads all existing links and tag names once, drops records
// whose link is already stored, and collects the referenced tag names
// not yet known. Placeholder and whitespace-only tag values are ignored
// outright.
func (e *Engine) reconcile(ctx context.Context, records []feed.Record) (*batch, error) {
	links, err := e.store.WriteupLinks(ctx)
	if err != nil {
		return nil, err
	}

	b := &batch{
		newNames: make(map[store.TagKind][]string, 3),
		tagIDs:   make(map[store.TagKind]map[string]int64, 3),
	}
	seen := make(map[store.TagKind]map[string]struct{}, 3)
	for _, kind := range store.AllTagKinds() {
		if b.tagIDs[kind], err = e.store.TagIDs(ctx, kind); err != nil {
			return nil, err
		}
		seen[kind] = make(map[string]struct{})
	}

	collect := func(kind store.TagKind, names []string) {
		for _, name := range names {
			if feed.IsPlaceholderTag(name) {
				continue
			}
			if _, ok := b.tagIDs[kind][name]; ok {
				continue
			}
			if _, ok := seen[kind][name]; ok {
				continue
			}
			seen[kind][name] = struct{}{}
			b.newNames[kind] = append(b.newNames[kind], name)
		}
	}

	for _, rec := range records {
		if primary, ok := rec.Primary(); ok {
			if _, exists := links[primary.Link]; exists {
				continue
			}
			// A batch may repeat a link; only the first occurrence wins.
			links[primary.Link] = struct{}{}
		}

		collect(store.TagAuthor, rec.Authors)
		collect(store.TagProgram, rec.Programs)
		collect(store.TagBug, rec.Bugs)
		b.records = append(b.records, rec)
	}

	for _, kind := range store.AllTagKinds() {
		sort.Strings(b.newNames[kind])
	}
	return b, nil
}

// commit writes the batch inside one transaction: new tag entities
// first, then each writeup row with its join rows. Any error rolls the
// whole batch back.
func (e *Engine) commit(ctx context.Context, b *batch) ([]store.Writeup, error) {
	var created []store.Writeup
	err := e.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, kind := range store.AllTagKinds() {
			inserted, err := e.store.InsertTagNames(ctx, tx, kind, b.newNames[kind])
			if err != nil {
				return err
			}
			for name, id := range inserted {
				b.tagIDs[kind][name] = id
			}
		}

		for _, rec := range b.records {
			w, err := e.commitRecord(ctx, tx, b, rec)
			if err != nil {
				return err
			}
			if w != nil {
				created = append(created, *w)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest batch: %w", err)
	}
	return created, nil
}

// commitRecord stores one record. A record without a complete title/link
// pair is skipped, not an error.
func (e *Engine) commitRecord(ctx context.Context, tx *sqlx.Tx, b *batch, rec feed.Record) (*store.Writeup, error) {
	primary, ok := rec.Primary()
	if !ok {
		return nil, nil
	}

	w := &store.Writeup{
		Title:       primary.Title,
		Link:        primary.Link,
		PublishedAt: ParseDate(rec.PublicationDate),
		AddedAt:     ParseDate(rec.AddedDate),
		Bounty:      NormalizeBounty(rec.Bounty),
		Source:      ClassifySource(rec.Source, primary.Link),
		Severity:    ClassifySeverity(rec.Severity),
		Summary:     rec.Summary,
	}
	if err := e.store.InsertWriteup(ctx, tx, w); err != nil {
		return nil, err
	}

	tagLists := []struct {
		kind  store.TagKind
		names []string
	}{
		{store.TagAuthor, rec.Authors},
		{store.TagProgram, rec.Programs},
		{store.TagBug, rec.Bugs},
	}
	for _, tl := range tagLists {
		ids := resolveTagIDs(b.tagIDs[tl.kind], tl.names)
		if len(ids) == 0 {
			continue
		}
		if err := e.store.LinkTags(ctx, tx, tl.kind, w.ID, ids); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// resolveTagIDs maps tag names to ids, dropping placeholders and
// duplicates within the record's own list.
func resolveTagIDs(lookup map[string]int64, names []string) []int64 {
	var ids []int64
	used := make(map[int64]struct{}, len(names))
	for _, name := range names {
		if feed.IsPlaceholderTag(name) {
			continue
		}
		id, ok := lookup[name]
		if !ok {
			continue
		}
		if _, dup := used[id]; dup {
			continue
		}
		used[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
