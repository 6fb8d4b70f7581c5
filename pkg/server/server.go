// Package server exposes the browse and ingestion API over HTTP. User
// identity arrives in the X-User-ID header; authentication itself is the
// deployment's concern.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/writeuphq/writeupd/internal/store"
	"github.com/writeuphq/writeupd/pkg/alert"
	"github.com/writeuphq/writeupd/pkg/feed"
	"github.com/writeuphq/writeupd/pkg/ingest"
)

// Server provides the HTTP API.
type Server struct {
	store    store.Store
	engine   *ingest.Engine
	feeds    []feed.Feed
	alertMgr *alert.Manager
	port     int
}

// New creates a new HTTP server.
func New(s store.Store, engine *ingest.Engine, feeds []feed.Feed, alertMgr *alert.Manager, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:    s,
		engine:   engine,
		feeds:    feeds,
		alertMgr: alertMgr,
		port:     port,
	}
}

// Handler returns the configured route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/writeups", s.handleWriteups)
	mux.HandleFunc("POST /api/v1/writeups/{id}/read", s.handleToggleRead)
	mux.HandleFunc("PUT /api/v1/writeups/{id}/note", s.handleNote)
	mux.HandleFunc("GET /api/v1/authors", s.handleTags(store.TagAuthor))
	mux.HandleFunc("GET /api/v1/programs", s.handleTags(store.TagProgram))
	mux.HandleFunc("GET /api/v1/bugs", s.handleTags(store.TagBug))
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("POST /api/v1/ingest", s.handleIngest)
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("writeupd server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWriteups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := r.Header.Get("X-User-ID")

	opts := store.ListOpts{
		Search:   q.Get("q"),
		Authors:  q["author"],
		Programs: q["program"],
		Bugs:     q["bug"],
		Source:   q.Get("source"),
		Severity: q.Get("severity"),
		Order:    q.Get("order"),
		UserID:   user,
	}
	switch q.Get("sort") {
	case "published":
		opts.SortBy = "published_at"
	default:
		opts.SortBy = "added_at"
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		opts.Page = page
	}
	// Read/note filters only make sense for an identified caller.
	if user != "" {
		opts.OnlyRead = q.Get("read") == "1"
		opts.OnlyNoted = q.Get("noted") == "1"
	}

	page, err := s.store.ListWriteups(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleToggleRead(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get("X-User-ID")
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing X-User-ID"})
		return
	}

	id, ok := s.writeupID(w, r)
	if !ok {
		return
	}

	read, err := s.store.ToggleRead(r.Context(), user, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": read})
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get("X-User-ID")
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing X-User-ID"})
		return
	}

	id, ok := s.writeupID(w, r)
	if !ok {
		return
	}

	var body struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if err := s.store.UpsertNote(r.Context(), user, id, body.Note); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"note": body.Note})
}

// writeupID parses the {id} path value and checks the writeup exists.
func (s *Server) writeupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid writeup id"})
		return 0, false
	}

	if _, err := s.store.GetWriteup(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "writeup not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return 0, false
	}
	return id, true
}

func (s *Server) handleTags(kind store.TagKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := store.TagListOpts{Search: r.URL.Query().Get("q")}
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			opts.Page = page
		}

		page, err := s.store.ListTagNames(r.Context(), kind, opts)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountWriteupsBySource(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := map[string]any{"sources": counts}
	if user := r.Header.Get("X-User-ID"); user != "" {
		reads, notes, err := s.store.UserStats(r.Context(), user)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp["reads"] = reads
		resp["notes"] = notes
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleIngest runs the pipeline over every configured feed. Feeds fail
// independently here; each error is reported alongside the counts. New
// writeups are broadcast to the alert notifiers, same as a scheduled run.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	created := make(map[string]int)
	var errs []string

	for _, f := range s.feeds {
		writeups, err := s.engine.IngestFeed(ctx, f)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		created[f.Name()] = len(writeups)

		if len(writeups) == 0 || !s.alertMgr.HasNotifiers() {
			continue
		}
		notification := &alert.Notification{
			Feed:     f.Name(),
			Created:  len(writeups),
			Writeups: writeups,
		}
		if err := s.alertMgr.Broadcast(ctx, notification); err != nil {
			errs = append(errs, fmt.Sprintf("alert %s: %v", f.Name(), err))
		}
	}

	resp := map[string]any{"created": created}
	if len(errs) > 0 {
		resp["errors"] = errs
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
