package core

// reconcile.go turns raw discovery payloads into normalized person records.
//
// The raw payload is produced by an external matching pipeline and arrives
// as loosely structured JSON. Decoding and validation happen here, at the
// boundary, so malformed entries are rejected explicitly instead of
// propagating missing-field ambiguity into the rest of the engine.

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxCandidates caps the candidate list produced by a build. Reviewers may
// later append manual accounts past the cap.
const maxCandidates = 3

// RawPersonEntry is one person's worth of upstream match data.
type RawPersonEntry struct {
	Name         string     `json:"name"`
	Legislatures []string   `json:"legislatures"`
	BestMatch    *RawMatch  `json:"best_match"`
	TopMatches   []RawMatch `json:"top_matches"`
}

// RawMatch is a single proposed account in the raw payload. Numeric signals
// default to zero when the pipeline omitted them.
type RawMatch struct {
	Username             string   `json:"username"`
	URL                  string   `json:"url"`
	Subscribers          int64    `json:"subscribers"`
	Confidence           float64  `json:"confidence"`
	RawScore             float64  `json:"raw_score"`
	Sources              []string `json:"sources"`
	NumSources           int      `json:"num_sources"`
	Verified             bool     `json:"verified"`
	Bio                  string   `json:"bio"`
	MentionsSelfRole     bool     `json:"mentions_self_role"`
	MentionsOrganization bool     `json:"mentions_organization"`
	MentionsAffiliation  bool     `json:"mentions_affiliation"`
	AffiliationName      string   `json:"affiliation_name"`
}

// DecodePayload reads and decodes a raw payload. A JSON syntax error aborts
// the whole decode; there is no partial result.
func DecodePayload(r io.Reader) ([]RawPersonEntry, error) {
	var entries []RawPersonEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, ValidationError{Reason: "malformed payload: " + err.Error()}
	}
	return entries, nil
}

// Build transforms a raw payload into normalized person records. It is pure
// and deterministic: ids are assigned sequentially in input order, duplicate
// references to the best match are enriched with its descriptive fields,
// and every verification field starts in the unverified state. Any
// malformed entry fails the whole build.
//
// Persisting the output is the caller's responsibility and is a full
// replacement of the record store; prior manual verifications do not
// survive a rebuild.
func Build(raw []RawPersonEntry) ([]PersonRecord, error) {
	records := make([]PersonRecord, 0, len(raw))

	for i, entry := range raw {
		rec, err := buildRecord(int64(i+1), entry)
		if err != nil {
			return nil, ValidationError{Reason: fmt.Sprintf("entry %d: %v", i, err)}
		}
		records = append(records, rec)
	}

	return records, nil
}

func buildRecord(id int64, entry RawPersonEntry) (PersonRecord, error) {
	if strings.TrimSpace(entry.Name) == "" {
		return PersonRecord{}, fmt.Errorf("name is required")
	}
	if len(entry.TopMatches) > maxCandidates {
		return PersonRecord{}, fmt.Errorf("%d alternative matches, at most %d allowed", len(entry.TopMatches), maxCandidates)
	}

	rec := PersonRecord{
		ID:              id,
		Name:            entry.Name,
		Legislatures:    append([]string(nil), entry.Legislatures...),
		UsernamesTested: []string{},
		UsernamesToTest: []string{},
	}

	var best *CandidateAccount
	if entry.BestMatch != nil && entry.BestMatch.Username != "" {
		b, err := convertMatch(*entry.BestMatch)
		if err != nil {
			return PersonRecord{}, fmt.Errorf("best match: %v", err)
		}
		best = &b
	}

	seen := make(map[string]bool, len(entry.TopMatches))
	for _, m := range entry.TopMatches {
		c, err := convertMatch(m)
		if err != nil {
			return PersonRecord{}, err
		}
		key := strings.ToLower(c.Username)
		if seen[key] {
			return PersonRecord{}, fmt.Errorf("duplicate candidate %q", c.Username)
		}
		seen[key] = true

		// Enrichment: the best match's descriptive data is authoritative
		// for every candidate entry sharing its username.
		if best != nil && strings.EqualFold(c.Username, best.Username) {
			c.Bio = best.Bio
			c.VerifiedBadge = best.VerifiedBadge
			c.MentionsSelfRole = best.MentionsSelfRole
			c.MentionsOrganization = best.MentionsOrganization
			c.MentionsAffiliation = best.MentionsAffiliation
			c.AffiliationName = best.AffiliationName
			c.ProfileURL = best.ProfileURL
		}
		rec.Candidates = append(rec.Candidates, c)
	}

	// A best match must appear in the candidate list. Upstream usually
	// includes it among the alternatives; repair the list when it doesn't.
	if best != nil && !rec.hasCandidate(best.Username) {
		rec.Candidates = append([]CandidateAccount{*best}, rec.Candidates...)
		if len(rec.Candidates) > maxCandidates {
			rec.Candidates = rec.Candidates[:maxCandidates]
		}
	}
	rec.BestMatch = best

	return rec, nil
}

func convertMatch(m RawMatch) (CandidateAccount, error) {
	if m.Username == "" {
		return CandidateAccount{}, fmt.Errorf("candidate with empty username")
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return CandidateAccount{}, fmt.Errorf("candidate %q: confidence %v out of range", m.Username, m.Confidence)
	}

	url := m.URL
	if url == "" {
		url = ProfileURLFor(m.Username)
	}

	return CandidateAccount{
		Username:             m.Username,
		ProfileURL:           url,
		SubscriberCount:      m.Subscribers,
		ConfidenceScore:      m.Confidence,
		RawScore:             m.RawScore,
		SourceCount:          m.NumSources,
		Sources:              append([]string(nil), m.Sources...),
		Bio:                  m.Bio,
		MentionsSelfRole:     m.MentionsSelfRole,
		MentionsOrganization: m.MentionsOrganization,
		MentionsAffiliation:  m.MentionsAffiliation,
		AffiliationName:      m.AffiliationName,
		VerifiedBadge:        m.Verified,
	}, nil
}
