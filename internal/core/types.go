package core

import (
	"fmt"
	"slices"
	"strings"
)

// ManualSourceTag marks candidate accounts added by a reviewer rather than
// discovered by the upstream matching pipeline.
const ManualSourceTag = "manual"

// profileURLBase is the canonical profile URL prefix for the tracked platform.
const profileURLBase = "https://www.tiktok.com/@"

// PersonRecord is the unit of work for reviewers: one tracked public figure
// together with the machine-proposed candidate accounts and the current
// human verification decision.
type PersonRecord struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Legislatures []string `json:"legislatures"`

	// BestMatch is the highest-confidence candidate as scored upstream.
	// When present it also appears in Candidates.
	BestMatch  *CandidateAccount  `json:"bestMatch,omitempty"`
	Candidates []CandidateAccount `json:"candidates"`

	// Reviewer worklists carried through from the discovery pipeline.
	UsernamesTested []string `json:"usernamesTested"`
	UsernamesToTest []string `json:"usernamesToTest"`

	VerifiedByHuman       bool    `json:"verifiedByHuman"`
	HumanVerifiedUsername *string `json:"humanVerifiedUsername"`
	NoAccountConfirmed    bool    `json:"noAccountConfirmed"`
}

// CandidateAccount is a machine-proposed (or reviewer-added) social profile
// possibly belonging to the record's person.
type CandidateAccount struct {
	Username        string   `json:"username"`
	ProfileURL      string   `json:"profileUrl,omitempty"`
	SubscriberCount int64    `json:"subscriberCount"`
	ConfidenceScore float64  `json:"confidenceScore"`
	RawScore        float64  `json:"rawScore"`
	SourceCount     int      `json:"sourceCount"`
	Sources         []string `json:"sources,omitempty"`

	// Bio content signals extracted upstream.
	Bio                  string `json:"bio,omitempty"`
	MentionsSelfRole     bool   `json:"mentionsSelfRole"`
	MentionsOrganization bool   `json:"mentionsOrganization"`
	MentionsAffiliation  bool   `json:"mentionsAffiliation"`
	AffiliationName      string `json:"affiliationName,omitempty"`

	// VerifiedBadge is the platform's own verification indicator. It is
	// unrelated to human verification of the owning record.
	VerifiedBadge bool `json:"verifiedBadge"`
}

// IsManual reports whether the candidate was added by a reviewer.
func (c CandidateAccount) IsManual() bool {
	return slices.Contains(c.Sources, ManualSourceTag)
}

// ProfileURLFor returns the canonical profile URL for a username.
func ProfileURLFor(username string) string {
	return profileURLBase + username
}

// BestConfidence returns the confidence score of the best match, or 0 when
// no best match exists. Used as the default sort key.
func (r *PersonRecord) BestConfidence() float64 {
	if r.BestMatch == nil {
		return 0
	}
	return r.BestMatch.ConfidenceScore
}

// firstLegislature returns the first legislature tag, or "" for records
// without any. Empty sorts before all tags.
func (r *PersonRecord) firstLegislature() string {
	if len(r.Legislatures) == 0 {
		return ""
	}
	return r.Legislatures[0]
}

// CheckInvariants validates the verification-state invariant of a stored
// record: a verified record names exactly one of a confirmed username or a
// confirmed absence, and a best match always appears in the candidate list.
// Violations indicate store corruption; callers exclude such records from
// results rather than failing the whole operation.
func (r *PersonRecord) CheckInvariants() error {
	if r.Name == "" {
		return fmt.Errorf("record %d: empty name", r.ID)
	}
	hasUsername := r.HumanVerifiedUsername != nil && *r.HumanVerifiedUsername != ""
	if r.VerifiedByHuman {
		if hasUsername == r.NoAccountConfirmed {
			return fmt.Errorf("record %d: verified but username and no-account flag are inconsistent", r.ID)
		}
	} else if hasUsername || r.NoAccountConfirmed {
		return fmt.Errorf("record %d: unverified record carries verification data", r.ID)
	}
	if r.BestMatch != nil && !r.hasCandidate(r.BestMatch.Username) {
		return fmt.Errorf("record %d: best match %q missing from candidates", r.ID, r.BestMatch.Username)
	}
	return nil
}

func (r *PersonRecord) hasCandidate(username string) bool {
	for _, c := range r.Candidates {
		if strings.EqualFold(c.Username, username) {
			return true
		}
	}
	return false
}

// Stats holds aggregate verification counts for the whole record set.
type Stats struct {
	Total       int `json:"total"`
	Verified    int `json:"verified"`
	Unverified  int `json:"unverified"`
	WithAccount int `json:"withAccount"`
	NoAccount   int `json:"noAccount"`
}
