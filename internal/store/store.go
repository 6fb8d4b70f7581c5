package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Known source tokens.
const (
	SourcePentesterland = "pentesterland"
	SourceHackerOne     = "hackerone"
)

// Severity buckets, lowest to highest.
const (
	SeverityNone     = "none"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Writeup is one stored disclosure report.
type Writeup struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Link        string     `db:"link" json:"link"`
	PublishedAt *time.Time `db:"published_at" json:"published_at"`
	AddedAt     *time.Time `db:"added_at" json:"added_at"`
	Bounty      *string    `db:"bounty" json:"bounty"`
	Source      string     `db:"source" json:"source"`
	Severity    string     `db:"severity" json:"severity"`
	Summary     string     `db:"summary" json:"summary"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TagKind selects one of the three tag entity tables.
type TagKind string

const (
	TagAuthor  TagKind = "author"
	TagProgram TagKind = "program"
	TagBug     TagKind = "bug"
)

// AllTagKinds returns the tag kinds in their fixed order.
func AllTagKinds() []TagKind {
	return []TagKind{TagAuthor, TagProgram, TagBug}
}

func (k TagKind) table() string {
	switch k {
	case TagAuthor:
		return "authors"
	case TagProgram:
		return "programs"
	case TagBug:
		return "bugs"
	}
	panic(fmt.Sprintf("unknown tag kind %q", string(k)))
}

func (k TagKind) joinTable() string {
	switch k {
	case TagAuthor:
		return "writeup_authors"
	case TagProgram:
		return "writeup_programs"
	case TagBug:
		return "writeup_bugs"
	}
	panic(fmt.Sprintf("unknown tag kind %q", string(k)))
}

func (k TagKind) joinColumn() string {
	switch k {
	case TagAuthor:
		return "author_id"
	case TagProgram:
		return "program_id"
	case TagBug:
		return "bug_id"
	}
	panic(fmt.Sprintf("unknown tag kind %q", string(k)))
}

// Store is the persistence interface.
type Store interface {
	// Ingestion side.
	WriteupLinks(ctx context.Context) (map[string]struct{}, error)
	TagIDs(ctx context.Context, kind TagKind) (map[string]int64, error)
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	InsertTagNames(ctx context.Context, tx *sqlx.Tx, kind TagKind, names []string) (map[string]int64, error)
	InsertWriteup(ctx context.Context, tx *sqlx.Tx, w *Writeup) error
	LinkTags(ctx context.Context, tx *sqlx.Tx, kind TagKind, writeupID int64, tagIDs []int64) error

	// Browse side.
	GetWriteup(ctx context.Context, id int64) (*Writeup, error)
	ListWriteups(ctx context.Context, opts ListOpts) (*WriteupPage, error)
	ListTagNames(ctx context.Context, kind TagKind, opts TagListOpts) (*TagPage, error)
	CountWriteupsBySource(ctx context.Context) (map[string]int, error)

	// Per-user annotations.
	ToggleRead(ctx context.Context, userID string, writeupID int64) (bool, error)
	UpsertNote(ctx context.Context, userID string, writeupID int64, note string) error
	UserStats(ctx context.Context, userID string) (reads, notes int, err error)

	PurgeAll(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and applies the schema.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteupLinks loads every stored link into a set. Link is the sole
// deduplication key for re-ingestion.
func (s *SQLiteStore) WriteupLinks(ctx context.Context) (map[string]struct{}, error) {
	var links []string
	if err := s.db.SelectContext(ctx, &links, "SELECT link FROM writeups"); err != nil {
		return nil, fmt.Errorf("load writeup links: %w", err)
	}

	set := make(map[string]struct{}, len(links))
	for _, l := range links {
		set[l] = struct{}{}
	}
	return set, nil
}

// TagIDs loads the full name -> id map for one tag table.
func (s *SQLiteStore) TagIDs(ctx context.Context, kind TagKind) (map[string]int64, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT id, name FROM "+kind.table())
	if err != nil {
		return nil, fmt.Errorf("load %s names: %w", kind.table(), err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

// WithTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InsertTagNames inserts new tag names and returns their ids. A name that
// lost a race to a concurrent ingestion resolves to the winner's row
// through ON CONFLICT DO NOTHING plus the re-read.
func (s *SQLiteStore) InsertTagNames(ctx context.Context, tx *sqlx.Tx, kind TagKind, names []string) (map[string]int64, error) {
	if len(names) == 0 {
		return map[string]int64{}, nil
	}

	insert := "INSERT INTO " + kind.table() + " (name) VALUES (?) ON CONFLICT(name) DO NOTHING"
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, insert, name); err != nil {
			return nil, fmt.Errorf("insert %s %q: %w", string(kind), name, err)
		}
	}

	query, args, err := sqlx.In("SELECT id, name FROM "+kind.table()+" WHERE name IN (?)", names)
	if err != nil {
		return nil, fmt.Errorf("build %s lookup: %w", kind.table(), err)
	}

	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read back %s ids: %w", kind.table(), err)
	}
	defer rows.Close()

	ids := make(map[string]int64, len(names))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

// InsertWriteup inserts one writeup row and fills in its generated id
// and timestamps.
func (s *SQLiteStore) InsertWriteup(ctx context.Context, tx *sqlx.Tx, w *Writeup) error {
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	res, err := tx.ExecContext(ctx, `
		INSERT INTO writeups (title, link, published_at, added_at, bounty, source, severity, summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.Title, w.Link, w.PublishedAt, w.AddedAt, w.Bounty, w.Source, w.Severity, w.Summary, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert writeup %s: %w", w.Link, err)
	}

	w.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("writeup %s id: %w", w.Link, err)
	}
	return nil
}

// LinkTags inserts the join rows tying a writeup to its tag entities.
func (s *SQLiteStore) LinkTags(ctx context.Context, tx *sqlx.Tx, kind TagKind, writeupID int64, tagIDs []int64) error {
	insert := "INSERT INTO " + kind.joinTable() + " (writeup_id, " + kind.joinColumn() + ") VALUES (?, ?) ON CONFLICT DO NOTHING"
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, insert, writeupID, tagID); err != nil {
			return fmt.Errorf("link writeup %d to %s %d: %w", writeupID, string(kind), tagID, err)
		}
	}
	return nil
}

func sqlxIn(query string, args []any) (string, []any, error) {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("expand query args: %w", err)
	}
	return q, expanded, nil
}

// PurgeAll wipes every table in one transaction, join tables first.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		tables := []string{
			"writeup_authors", "writeup_programs", "writeup_bugs",
			"notes", "reads",
			"authors", "programs", "bugs",
			"writeups",
		}
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("purge %s: %w", table, err)
			}
		}
		return nil
	})
}
