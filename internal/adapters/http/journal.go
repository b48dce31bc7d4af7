package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

func (rt *Router) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := rt.comments.List(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (rt *Router) addComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	comment, err := rt.comments.Add(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (rt *Router) listJournal(w http.ResponseWriter, r *http.Request) {
	filter, err := journalFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := rt.journal.List(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (rt *Router) exportJournal(w http.ResponseWriter, r *http.Request) {
	filter, err := journalFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := rt.journal.Export(r.Context(), actorFromContext(r.Context()), filter, &buf); err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("journal-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", rt.journal.ExportContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func journalFilterFromQuery(r *http.Request) (domain.JournalFilter, error) {
	const op = "parse journal filter"
	q := r.URL.Query()
	filter := domain.JournalFilter{
		ActorID:      strings.TrimSpace(q.Get("actor_id")),
		Action:       domain.AuditAction(strings.TrimSpace(q.Get("action"))),
		ResourceType: strings.TrimSpace(q.Get("resource_type")),
		ResourceID:   strings.TrimSpace(q.Get("resource_id")),
	}

	for name, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		at, err := parseTimeParam(raw)
		if err != nil {
			return domain.JournalFilter{}, domain.Invalid(op, name+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
		}
		*target = &at
	}

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return domain.JournalFilter{}, domain.Invalid(op, "limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return at.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
