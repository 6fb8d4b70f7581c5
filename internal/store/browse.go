package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PageSize is the fixed page length for writeup and facet listings.
const PageSize = 100

// ErrNotFound is returned when a writeup id does not exist.
var ErrNotFound = errors.New("writeup not found")

// ListOpts controls writeup listing. Zero values mean "no filter".
type ListOpts struct {
	Search    string
	Authors   []string
	Programs  []string
	Bugs      []string
	Source    string
	Severity  string
	OnlyRead  bool
	OnlyNoted bool
	UserID    string
	SortBy    string // "published_at" or "added_at"
	Order     string // "asc" or "desc"
	Page      int    // 1-based
}

// WriteupDetail is a writeup joined with its tag names and the calling
// user's annotations.
type WriteupDetail struct {
	Writeup
	Authors  []string `json:"authors"`
	Programs []string `json:"programs"`
	Bugs     []string `json:"bugs"`
	Note     *string  `json:"note"`
	Read     bool     `json:"read"`
}

// WriteupPage is one page of listing results.
type WriteupPage struct {
	Items     []WriteupDetail `json:"items"`
	Total     int             `json:"total"`
	PageCount int             `json:"page_count"`
}

// TagListOpts controls facet listing.
type TagListOpts struct {
	Search string
	Page   int
}

// TagPage is one page of facet names.
type TagPage struct {
	Names     []string `json:"names"`
	Total     int      `json:"total"`
	PageCount int      `json:"page_count"`
}

func (s *SQLiteStore) GetWriteup(ctx context.Context, id int64) (*Writeup, error) {
	var w Writeup
	err := s.db.GetContext(ctx, &w, "SELECT * FROM writeups WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get writeup %d: %w", id, err)
	}
	return &w, nil
}

// ListWriteups returns one page of writeups matching opts, joined with
// tag names and, when opts.UserID is set, the caller's note and read flag.
func (s *SQLiteStore) ListWriteups(ctx context.Context, opts ListOpts) (*WriteupPage, error) {
	var conds []string
	var args []any

	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		conds = append(conds, "(title LIKE ? OR link LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if opts.Source != "" && opts.Source != "all" {
		conds = append(conds, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.Severity != "" && opts.Severity != "all" {
		conds = append(conds, "severity = ?")
		args = append(args, opts.Severity)
	}

	tagFilters := []struct {
		kind  TagKind
		names []string
	}{
		{TagAuthor, opts.Authors},
		{TagProgram, opts.Programs},
		{TagBug, opts.Bugs},
	}
	for _, f := range tagFilters {
		if len(f.names) == 0 {
			continue
		}
		conds = append(conds, fmt.Sprintf(
			"id IN (SELECT j.writeup_id FROM %s j JOIN %s t ON t.id = j.%s WHERE t.name IN (?))",
			f.kind.joinTable(), f.kind.table(), f.kind.joinColumn()))
		args = append(args, f.names)
	}

	if opts.OnlyRead {
		conds = append(conds, "id IN (SELECT writeup_id FROM reads WHERE user_id = ?)")
		args = append(args, opts.UserID)
	}
	if opts.OnlyNoted {
		conds = append(conds, "id IN (SELECT writeup_id FROM notes WHERE user_id = ?)")
		args = append(args, opts.UserID)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countQuery, countArgs, err := sqlxIn("SELECT COUNT(*) FROM writeups"+where, args)
	if err != nil {
		return nil, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, fmt.Errorf("count writeups: %w", err)
	}

	page := &WriteupPage{Items: []WriteupDetail{}, Total: total}
	if total == 0 {
		return page, nil
	}
	page.PageCount = (total + PageSize - 1) / PageSize

	query := "SELECT * FROM writeups" + where +
		" ORDER BY " + sortField(opts.SortBy) + " " + sortOrder(opts.Order) +
		" LIMIT ? OFFSET ?"
	listArgs := append(append([]any{}, args...), PageSize, offsetFor(opts.Page))

	listQuery, expanded, err := sqlxIn(query, listArgs)
	if err != nil {
		return nil, err
	}
	var writeups []Writeup
	if err := s.db.SelectContext(ctx, &writeups, listQuery, expanded...); err != nil {
		return nil, fmt.Errorf("list writeups: %w", err)
	}
	if len(writeups) == 0 {
		return page, nil
	}

	ids := make([]int64, len(writeups))
	for i, w := range writeups {
		ids[i] = w.ID
	}

	tagsByWriteup := make(map[TagKind]map[int64][]string, 3)
	for _, kind := range AllTagKinds() {
		names, err := s.tagNamesFor(ctx, kind, ids)
		if err != nil {
			return nil, err
		}
		tagsByWriteup[kind] = names
	}

	notes := map[int64]string{}
	reads := map[int64]struct{}{}
	if opts.UserID != "" {
		if notes, err = s.notesFor(ctx, opts.UserID, ids); err != nil {
			return nil, err
		}
		if reads, err = s.readsFor(ctx, opts.UserID, ids); err != nil {
			return nil, err
		}
	}

	for _, w := range writeups {
		detail := WriteupDetail{
			Writeup:  w,
			Authors:  tagsByWriteup[TagAuthor][w.ID],
			Programs: tagsByWriteup[TagProgram][w.ID],
			Bugs:     tagsByWriteup[TagBug][w.ID],
		}
		if note, ok := notes[w.ID]; ok {
			detail.Note = &note
		}
		_, detail.Read = reads[w.ID]
		page.Items = append(page.Items, detail)
	}
	return page, nil
}

func (s *SQLiteStore) tagNamesFor(ctx context.Context, kind TagKind, writeupIDs []int64) (map[int64][]string, error) {
	query, args, err := sqlxIn(fmt.Sprintf(
		"SELECT j.writeup_id, t.name FROM %s j JOIN %s t ON t.id = j.%s WHERE j.writeup_id IN (?) ORDER BY t.name",
		kind.joinTable(), kind.table(), kind.joinColumn()), []any{writeupIDs})
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s names: %w", kind.joinTable(), err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) notesFor(ctx context.Context, userID string, writeupIDs []int64) (map[int64]string, error) {
	query, args, err := sqlxIn(
		"SELECT writeup_id, note FROM notes WHERE user_id = ? AND writeup_id IN (?)",
		[]any{userID, writeupIDs})
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var note string
		if err := rows.Scan(&id, &note); err != nil {
			return nil, err
		}
		out[id] = note
	}
	return out, rows.Err()
}

func (s *SQLiteStore) readsFor(ctx context.Context, userID string, writeupIDs []int64) (map[int64]struct{}, error) {
	query, args, err := sqlxIn(
		"SELECT writeup_id FROM reads WHERE user_id = ? AND writeup_id IN (?)",
		[]any{userID, writeupIDs})
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("load reads: %w", err)
	}

	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// ListTagNames returns one page of distinct tag names, optionally
// filtered by substring.
func (s *SQLiteStore) ListTagNames(ctx context.Context, kind TagKind, opts TagListOpts) (*TagPage, error) {
	where := ""
	var args []any
	if opts.Search != "" {
		where = " WHERE name LIKE ?"
		args = append(args, "%"+opts.Search+"%")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+kind.table()+where, args...); err != nil {
		return nil, fmt.Errorf("count %s: %w", kind.table(), err)
	}

	page := &TagPage{Names: []string{}, Total: total}
	if total == 0 {
		return page, nil
	}
	page.PageCount = (total + PageSize - 1) / PageSize

	query := "SELECT name FROM " + kind.table() + where + " ORDER BY name LIMIT ? OFFSET ?"
	args = append(args, PageSize, offsetFor(opts.Page))
	if err := s.db.SelectContext(ctx, &page.Names, query, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.table(), err)
	}
	return page, nil
}

func (s *SQLiteStore) CountWriteupsBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT source, COUNT(*) AS cnt FROM writeups GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count writeups by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, err
		}
		counts[src] = cnt
	}
	return counts, rows.Err()
}

func sortField(field string) string {
	switch field {
	case "published_at":
		return "published_at"
	default:
		return "added_at"
	}
}

func sortOrder(order string) string {
	if order == "asc" {
		return "ASC"
	}
	return "DESC"
}

func offsetFor(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}
