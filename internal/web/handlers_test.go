package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pcharron/accountvet/internal/config"
	"github.com/pcharron/accountvet/internal/core"
	"github.com/pcharron/accountvet/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	service := core.NewService(store.NewMemory())
	raw := []core.RawPersonEntry{
		{
			Name:         "Alice Martin",
			Legislatures: []string{"16", "17"},
			BestMatch:    &core.RawMatch{Username: "alice", Confidence: 0.9},
			TopMatches:   []core.RawMatch{{Username: "alice", Confidence: 0.9}},
		},
		{
			Name:         "Bernard Dupont",
			Legislatures: []string{"17"},
		},
	}
	if _, err := service.Reload(context.Background(), raw); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = time.Minute
	cfg.Rate.Enabled = false
	return NewServer(service, cfg)
}

func doRequest(t *testing.T, s *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeRecords(t *testing.T, rec *httptest.ResponseRecorder) []core.PersonRecord {
	t.Helper()

	var records []core.PersonRecord
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return records
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleListRecords(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/records", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	records := decodeRecords(t, rec)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	// Default sort is confidence descending.
	if records[0].Name != "Alice Martin" {
		t.Errorf("records[0].Name = %q, want Alice Martin first", records[0].Name)
	}
}

func TestHandleListRecords_Filtered(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/records?legislature=16&q=alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	records := decodeRecords(t, rec)
	if len(records) != 1 || records[0].Name != "Alice Martin" {
		t.Errorf("records = %+v, want only Alice Martin", records)
	}
}

func TestHandleListRecords_BadParams(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/records?status=bogus", "/api/records?sort=bogus"} {
		rec := doRequest(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		var body ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decoding error body: %v", path, err)
		}
		if body.Code != "VAL001" {
			t.Errorf("%s: code = %q, want VAL001", path, body.Code)
		}
	}
}

func TestHandleGetRecord(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/records/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var record core.PersonRecord
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if record.ID != 1 || record.Name != "Alice Martin" {
		t.Errorf("record = %+v", record)
	}
}

func TestHandleGetRecord_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/records/999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Code != "REC001" {
		t.Errorf("code = %q, want REC001", body.Code)
	}
}

func TestHandleGetRecord_BadID(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/records/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleVerify(t *testing.T) {
	s := newTestServer(t)

	body := `{"verifiedByHuman": true, "humanVerifiedUsername": "alice"}`
	rec := doRequest(t, s, http.MethodPut, "/api/records/1/verify", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var record core.PersonRecord
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !record.VerifiedByHuman || record.HumanVerifiedUsername == nil || *record.HumanVerifiedUsername != "alice" {
		t.Errorf("record = %+v", record)
	}
}

func TestHandleVerify_NoAccount(t *testing.T) {
	s := newTestServer(t)

	body := `{"verifiedByHuman": true, "noAccountConfirmed": true}`
	rec := doRequest(t, s, http.MethodPut, "/api/records/2/verify", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var record core.PersonRecord
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !record.NoAccountConfirmed {
		t.Errorf("record = %+v, want no-account confirmed", record)
	}
}

func TestHandleVerify_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/records/1/verify", `{"verifiedByHuman":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAddManual(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/records/2/manual", `{"account": "@bernard_officiel"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var record core.PersonRecord
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(record.Candidates) != 1 || record.Candidates[0].Username != "bernard_officiel" {
		t.Errorf("candidates = %+v", record.Candidates)
	}
	if !record.VerifiedByHuman {
		t.Error("record not verified after manual add")
	}
}

func TestHandleUpdateUsernames(t *testing.T) {
	s := newTestServer(t)

	body := `{"usernamesTested": ["a"], "usernamesToTest": ["b", "c"]}`
	rec := doRequest(t, s, http.MethodPut, "/api/records/1/usernames", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var record core.PersonRecord
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(record.UsernamesTested) != 1 || len(record.UsernamesToTest) != 2 {
		t.Errorf("worklists = %v / %v", record.UsernamesTested, record.UsernamesToTest)
	}
}

func TestHandleStats(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats core.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if stats.Total != 2 || stats.Unverified != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleExport(t *testing.T) {
	s := newTestServer(t)

	// Verify one record so the export has a row.
	verify := doRequest(t, s, http.MethodPut, "/api/records/1/verify",
		`{"verifiedByHuman": true, "humanVerifiedUsername": "alice"}`)
	if verify.Code != http.StatusOK {
		t.Fatalf("verify status = %d", verify.Code)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, core.ExportFilename) {
		t.Errorf("Content-Disposition = %q, want filename %q", cd, core.ExportFilename)
	}
	if !strings.Contains(rec.Body.String(), "Alice Martin") {
		t.Errorf("export body missing verified record:\n%s", rec.Body.String())
	}
}

func TestHandleReload(t *testing.T) {
	s := newTestServer(t)

	payload := `[{"name": "Claire Bernard", "legislatures": ["17"]}]`
	rec := doRequest(t, s, http.MethodPost, "/api/reload", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"records":1`) {
		t.Errorf("body = %q", rec.Body.String())
	}

	list := doRequest(t, s, http.MethodGet, "/api/records", "")
	records := decodeRecords(t, list)
	if len(records) != 1 || records[0].Name != "Claire Bernard" {
		t.Errorf("records after reload = %+v", records)
	}
}

func TestHandleReload_MalformedPayload(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/reload", `[{"name": ""}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	// Prior record set must survive a rejected reload.
	list := doRequest(t, s, http.MethodGet, "/api/records", "")
	if records := decodeRecords(t, list); len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}
}

func TestHandleReloadVerifications(t *testing.T) {
	s := newTestServer(t)

	snapshot := strings.Join([]string{
		"id,name,legislatures,username,profile_url,no_account",
		"1,Alice Martin,16,alice,https://www.tiktok.com/@alice,false",
	}, "\n")
	rec := doRequest(t, s, http.MethodPost, "/api/reload/verifications", snapshot)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"applied":1`) {
		t.Errorf("body = %q", rec.Body.String())
	}

	get := doRequest(t, s, http.MethodGet, "/api/records/1", "")
	var record core.PersonRecord
	if err := json.NewDecoder(get.Body).Decode(&record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !record.VerifiedByHuman {
		t.Errorf("record = %+v, want verified after replay", record)
	}
}

func TestHandleAuditLog(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/audit-log", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var entries []core.AuditEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	// The seed reload is audited.
	if len(entries) != 1 || entries[0].Action != core.ActionReload {
		t.Errorf("entries = %+v", entries)
	}

	bad := doRequest(t, s, http.MethodGet, "/api/audit-log?limit=abc", "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad limit", bad.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestRateLimiter(t *testing.T) {
	service := core.NewService(store.NewMemory())
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = time.Minute
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 3
	s := NewServer(service, cfg)

	var last int
	for i := 0; i < 4; i++ {
		rec := doRequest(t, s, http.MethodGet, "/healthz", "")
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("4th request status = %d, want 429", last)
	}
}
