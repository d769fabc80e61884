package core

// transitions.go holds the verification state machine as pure functions on
// a PersonRecord. Records move between three states only:
//
//	UNVERIFIED -> VERIFIED_WITH_ACCOUNT   (verify account)
//	UNVERIFIED -> VERIFIED_NO_ACCOUNT     (mark no account)
//	VERIFIED_* -> UNVERIFIED              (unverify, shared reverse path)
//
// "Undo a no-account decision" and "unverify an account" are deliberately
// the same transition: both mean "return to unverified". Intent is a UI
// concern, not a data-model one. Every transition is idempotent.

import (
	"net/url"
	"strconv"
	"strings"
)

// applyVerifyAccount confirms username as the person's account. The
// username does not have to appear among the record's candidates; reviewers
// may confirm externally known handles.
func applyVerifyAccount(rec *PersonRecord, username string) {
	u := username
	rec.VerifiedByHuman = true
	rec.HumanVerifiedUsername = &u
	rec.NoAccountConfirmed = false
}

// applyUnverify returns the record to the unverified state from either
// verified sub-state.
func applyUnverify(rec *PersonRecord) {
	rec.VerifiedByHuman = false
	rec.HumanVerifiedUsername = nil
	rec.NoAccountConfirmed = false
}

// applyMarkNoAccount confirms the person has no account on the platform.
func applyMarkNoAccount(rec *PersonRecord) {
	rec.VerifiedByHuman = true
	rec.HumanVerifiedUsername = nil
	rec.NoAccountConfirmed = true
}

// applyManualAccount appends a reviewer-supplied candidate and confirms it
// in the same step. Manual candidates carry no numeric signals. Existing
// candidates are kept; re-adding a username that is already listed only
// re-confirms it. A record with no best match adopts the manual account as
// its best match so the candidate invariant keeps holding.
func applyManualAccount(rec *PersonRecord, username, profile string) {
	if !rec.hasCandidate(username) {
		rec.Candidates = append(rec.Candidates, CandidateAccount{
			Username:    username,
			ProfileURL:  profile,
			SourceCount: 1,
			Sources:     []string{ManualSourceTag},
		})
	}
	if rec.BestMatch == nil {
		for i := range rec.Candidates {
			if strings.EqualFold(rec.Candidates[i].Username, username) {
				c := rec.Candidates[i]
				rec.BestMatch = &c
				break
			}
		}
	}
	applyVerifyAccount(rec, username)
}

// NormalizeHandle turns reviewer input into a canonical username and
// profile URL. It accepts "@handle", a bare "handle", or a full profile URL
// with optional trailing slash and query string.
func NormalizeHandle(raw string) (username, profile string, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", ValidationError{Reason: "account handle or URL is required"}
	}

	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	} else if u, perr := url.Parse(s); perr == nil && u.Host != "" {
		s = strings.Trim(u.Path, "/")
	}
	if j := strings.IndexAny(s, "/?#"); j >= 0 {
		s = s[:j]
	}
	s = strings.TrimSpace(s)

	if s == "" {
		return "", "", ValidationError{Reason: "no username found in " + strconv.Quote(raw)}
	}
	return s, ProfileURLFor(s), nil
}
