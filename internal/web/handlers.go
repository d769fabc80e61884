package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pcharron/accountvet/internal/core"
	"github.com/pcharron/accountvet/internal/logging"
)

// handleHealth reports whether the record store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// handleListRecords returns the record set filtered and sorted by query
// parameters: status, legislature, q (name search), sort.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := core.ParseVerificationFilter(q.Get("status"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	sortKey, err := core.ParseSortKey(q.Get("sort"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	filters := core.Filters{
		Status:      status,
		Legislature: q.Get("legislature"),
		NameQuery:   q.Get("q"),
	}

	records, err := s.service.ListRecords(r.Context(), filters, sortKey)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, records)
}

// handleGetRecord returns a single record by id.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := s.service.GetRecord(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, rec)
}

// handleStats returns aggregate verification counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, stats)
}

// handleVerify dispatches a combined verification update to the state
// machine and returns the updated record.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var upd core.VerificationUpdate
	if !decodeBody(w, r, &upd) {
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	rec, err := s.service.ApplyVerification(ctx, id, upd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, rec)
}

// manualAccountRequest carries a reviewer-supplied handle or profile URL.
type manualAccountRequest struct {
	Account string `json:"account"`
}

// handleAddManual appends a manual candidate account and verifies it.
func (s *Server) handleAddManual(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var req manualAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	rec, err := s.service.AddManualAccount(ctx, id, req.Account)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, rec)
}

// usernameListsRequest updates reviewer worklists; a missing field leaves
// the corresponding list untouched.
type usernameListsRequest struct {
	UsernamesTested []string `json:"usernamesTested"`
	UsernamesToTest []string `json:"usernamesToTest"`
}

// handleUpdateUsernames replaces the reviewer worklists on a record.
func (s *Server) handleUpdateUsernames(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var req usernameListsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	rec, err := s.service.UpdateUsernameLists(ctx, id, req.UsernamesTested, req.UsernamesToTest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, rec)
}

// handleExport streams the CSV of human-verified records as an attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.ExportFilename))

	if err := s.service.WriteExport(r.Context(), w); err != nil {
		// Headers are already written; log instead of re-responding.
		logging.FromContext(r.Context()).Error("export failed", "error", err)
	}
}

// handleReload rebuilds the record store from the raw payload in the
// request body. Destructive: all prior records and manual verifications
// are replaced.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	raw, err := core.DecodePayload(r.Body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	count, err := s.service.Reload(ctx, raw)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("record store reloaded", "records", count)
	writeJSON(w, r, map[string]int{"records": count})
}

// handleReloadVerifications replays human decisions from a previously
// exported CSV onto the current record set.
func (s *Server) handleReloadVerifications(w http.ResponseWriter, r *http.Request) {
	entries, err := core.ReadVerificationSnapshot(r.Body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	applied, err := s.service.ApplyVerificationSnapshot(ctx, entries)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]int{"applied": applied})
}

// handleAuditLog returns recent audit entries, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErrorStatus(w, r, http.StatusBadRequest, "invalid input: limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.service.AuditLog(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, entries)
}

// recordID parses the {id} URL parameter, responding with 400 on garbage.
func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondErrorStatus(w, r, http.StatusBadRequest, "invalid input: record id must be an integer")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body, responding with 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, r, core.ValidationError{Reason: "malformed JSON body: " + err.Error()})
		return false
	}
	return true
}
