package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionVerifyAccount    AuditAction = "verify_account"
	ActionUnverifyAccount  AuditAction = "unverify_account"
	ActionMarkNoAccount    AuditAction = "mark_no_account"
	ActionAddManualAccount AuditAction = "add_manual_account"
	ActionUpdateWorklists  AuditAction = "update_worklists"
	ActionReload           AuditAction = "reload"
	ActionApplySnapshot    AuditAction = "apply_snapshot"
)

// AuditEntry records one mutating operation against the record set.
// Reviewers share a single trust domain, so entries carry network metadata
// rather than user identity.
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	RecordID  int64       `json:"recordId,omitempty"`
	Username  string      `json:"username,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	IPAddress string      `json:"ipAddress,omitempty"`
	UserAgent string      `json:"userAgent,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// logAudit appends an audit entry for a completed operation. Auditing is
// best-effort: a failed append is logged but never fails the operation that
// already succeeded.
func (s *Service) logAudit(ctx context.Context, action AuditAction, recordID int64, username, detail string) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		RecordID:  recordID,
		Username:  username,
		Detail:    detail,
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		slog.Warn("audit append failed",
			"action", action,
			"record_id", recordID,
			"error", err,
		)
	}
}

// AuditLog returns the most recent audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.RecentAudit(ctx, limit)
}
