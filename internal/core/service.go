package core

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// RecordStore is the durable table of person records, the single source of
// truth. Update applies a per-record read-modify-write atomically: updates
// to different ids never block each other and concurrent updates to one id
// resolve last-write-wins. ReplaceAll runs as one exclusive transaction
// that never interleaves with per-record updates.
type RecordStore interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]PersonRecord, error)
	Get(ctx context.Context, id int64) (*PersonRecord, error)
	Update(ctx context.Context, id int64, apply func(*PersonRecord) error) (*PersonRecord, error)
	ReplaceAll(ctx context.Context, records []PersonRecord) error
	Stats(ctx context.Context) (Stats, error)
	AppendAudit(ctx context.Context, entry AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Service provides the verification engine's operations over an injected
// RecordStore. It holds no record state of its own; queries work on read
// snapshots returned by the store.
type Service struct {
	store RecordStore
}

// NewService creates a Service backed by the given store.
func NewService(store RecordStore) *Service {
	return &Service{store: store}
}

// Ping reports whether the record store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListRecords returns a filtered, sorted snapshot of the record set.
func (s *Service) ListRecords(ctx context.Context, f Filters, key SortKey) ([]PersonRecord, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Query(records, f, key), nil
}

// GetRecord returns a single record by id.
func (s *Service) GetRecord(ctx context.Context, id int64) (*PersonRecord, error) {
	return s.store.Get(ctx, id)
}

// GetStats returns aggregate verification counts.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// VerifyAccount confirms username as the record's account. The username
// need not appear among the record's candidates; confirming an externally
// known handle is supported on purpose.
func (s *Service) VerifyAccount(ctx context.Context, id int64, username string) (*PersonRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ValidationError{Reason: "username is required to confirm an account"}
	}
	rec, err := s.store.Update(ctx, id, func(r *PersonRecord) error {
		applyVerifyAccount(r, username)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ActionVerifyAccount, id, username, "")
	return rec, nil
}

// UnverifyAccount returns the record to the unverified state. This is the
// single reverse transition for both verified sub-states.
func (s *Service) UnverifyAccount(ctx context.Context, id int64) (*PersonRecord, error) {
	rec, err := s.store.Update(ctx, id, func(r *PersonRecord) error {
		applyUnverify(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ActionUnverifyAccount, id, "", "")
	return rec, nil
}

// MarkNoAccount confirms the person has no account on the platform.
func (s *Service) MarkNoAccount(ctx context.Context, id int64) (*PersonRecord, error) {
	rec, err := s.store.Update(ctx, id, func(r *PersonRecord) error {
		applyMarkNoAccount(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ActionMarkNoAccount, id, "", "")
	return rec, nil
}

// AddManualAccount normalizes a reviewer-supplied handle or URL, appends it
// to the record's candidates tagged as manual, and confirms it. Adding and
// verifying are one logical action.
func (s *Service) AddManualAccount(ctx context.Context, id int64, rawInput string) (*PersonRecord, error) {
	username, profile, err := NormalizeHandle(rawInput)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Update(ctx, id, func(r *PersonRecord) error {
		applyManualAccount(r, username, profile)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ActionAddManualAccount, id, username, "")
	return rec, nil
}

// VerificationUpdate is the API layer's combined verify request. Which
// state-machine operation runs depends on the field combination.
type VerificationUpdate struct {
	VerifiedByHuman       bool    `json:"verifiedByHuman"`
	HumanVerifiedUsername *string `json:"humanVerifiedUsername"`
	NoAccountConfirmed    *bool   `json:"noAccountConfirmed"`
}

// ApplyVerification dispatches a VerificationUpdate to the matching
// state-machine operation: no-account beats username, and an unset
// verified flag always means "return to unverified".
func (s *Service) ApplyVerification(ctx context.Context, id int64, upd VerificationUpdate) (*PersonRecord, error) {
	switch {
	case upd.NoAccountConfirmed != nil && *upd.NoAccountConfirmed:
		return s.MarkNoAccount(ctx, id)
	case !upd.VerifiedByHuman:
		return s.UnverifyAccount(ctx, id)
	case upd.HumanVerifiedUsername != nil && strings.TrimSpace(*upd.HumanVerifiedUsername) != "":
		return s.VerifyAccount(ctx, id, *upd.HumanVerifiedUsername)
	default:
		return nil, ValidationError{Reason: "a username is required unless marking no account"}
	}
}

// UpdateUsernameLists replaces the reviewer worklists. A nil slice leaves
// the corresponding list untouched.
func (s *Service) UpdateUsernameLists(ctx context.Context, id int64, tested, toTest []string) (*PersonRecord, error) {
	rec, err := s.store.Update(ctx, id, func(r *PersonRecord) error {
		if tested != nil {
			r.UsernamesTested = tested
		}
		if toTest != nil {
			r.UsernamesToTest = toTest
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ActionUpdateWorklists, id, "", "")
	return rec, nil
}

// Reload rebuilds the whole record set from a raw payload. This is the
// destructive administrative reload: it replaces every record, and prior
// manual verifications are intentionally lost. A malformed payload aborts
// with no partial replacement.
func (s *Service) Reload(ctx context.Context, raw []RawPersonEntry) (int, error) {
	records, err := Build(raw)
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceAll(ctx, records); err != nil {
		return 0, err
	}
	s.logAudit(ctx, ActionReload, 0, "", fmt.Sprintf("replaced store with %d records", len(records)))
	return len(records), nil
}

// ApplyVerificationSnapshot replays exported human decisions onto the
// current record set, matching by person name. Entries naming unknown
// people are skipped, mirroring how snapshots outlive payload revisions.
// Returns the number of records updated.
func (s *Service) ApplyVerificationSnapshot(ctx context.Context, entries []SnapshotEntry) (int, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	byName := make(map[string]int64, len(records))
	for _, rec := range records {
		byName[strings.ToLower(rec.Name)] = rec.ID
	}

	applied := 0
	for _, e := range entries {
		id, ok := byName[strings.ToLower(e.Name)]
		if !ok {
			continue
		}
		_, err := s.store.Update(ctx, id, func(r *PersonRecord) error {
			if e.NoAccount {
				applyMarkNoAccount(r)
			} else {
				applyVerifyAccount(r, e.Username)
			}
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("apply snapshot entry %q: %w", e.Name, err)
		}
		applied++
	}

	s.logAudit(ctx, ActionApplySnapshot, 0, "", fmt.Sprintf("replayed %d of %d snapshot entries", applied, len(entries)))
	return applied, nil
}

// WriteExport streams the CSV export of all human-verified records,
// ordered by name.
func (s *Service) WriteExport(ctx context.Context, w io.Writer) error {
	records, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	return ExportCSV(w, Query(records, Filters{}, SortName))
}
