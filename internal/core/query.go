package core

// query.go filters and sorts record snapshots for presentation and export.
// Everything here is pure: callers pass a snapshot in and get a new,
// independently ordered slice back. Sorting is stable so that records tying
// on the active key keep their input order, which keeps pagination and
// tests deterministic.

import (
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// VerificationFilter selects records by verification state.
type VerificationFilter string

const (
	FilterAll        VerificationFilter = ""
	FilterVerified   VerificationFilter = "verified"
	FilterUnverified VerificationFilter = "unverified"
	FilterNoAccount  VerificationFilter = "no-account"
)

// ParseVerificationFilter validates a status query parameter.
func ParseVerificationFilter(s string) (VerificationFilter, error) {
	switch f := VerificationFilter(s); f {
	case FilterAll, FilterVerified, FilterUnverified, FilterNoAccount:
		return f, nil
	default:
		return FilterAll, ValidationError{Reason: "unknown status filter " + strconv.Quote(s)}
	}
}

// Filters are combined with AND semantics; zero values match everything.
type Filters struct {
	Status      VerificationFilter
	Legislature string
	NameQuery   string
}

// SortKey selects the single active ordering.
type SortKey string

const (
	SortConfidenceDesc SortKey = "confidence"
	SortConfidenceAsc  SortKey = "confidence-asc"
	SortLegislature    SortKey = "legislature"
	SortName           SortKey = "name"
)

// ParseSortKey validates a sort query parameter, defaulting to confidence
// descending.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortConfidenceDesc, nil
	}
	switch k := SortKey(s); k {
	case SortConfidenceDesc, SortConfidenceAsc, SortLegislature, SortName:
		return k, nil
	default:
		return SortConfidenceDesc, ValidationError{Reason: "unknown sort key " + strconv.Quote(s)}
	}
}

// Query returns the records passing every filter, ordered by the sort key.
// Records violating the stored-data invariant are excluded and reported as
// an observability event rather than failing the query.
func Query(records []PersonRecord, f Filters, key SortKey) []PersonRecord {
	out := make([]PersonRecord, 0, len(records))
	for _, rec := range records {
		if err := rec.CheckInvariants(); err != nil {
			slog.Warn("excluding record with invariant violation", "record_id", rec.ID, "error", err)
			continue
		}
		if matches(rec, f) {
			out = append(out, rec)
		}
	}

	switch key {
	case SortConfidenceAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].BestConfidence() < out[j].BestConfidence()
		})
	case SortLegislature:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].firstLegislature() < out[j].firstLegislature()
		})
	case SortName:
		// Collation is locale-aware: the tracked corpus is French and
		// accented names must not sort after 'z'. Collators are not safe
		// for concurrent use, so build one per call.
		c := collate.New(language.French, collate.Loose)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Name, out[j].Name) < 0
		})
	default: // SortConfidenceDesc
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].BestConfidence() > out[j].BestConfidence()
		})
	}

	return out
}

func matches(rec PersonRecord, f Filters) bool {
	switch f.Status {
	case FilterVerified:
		if !rec.VerifiedByHuman {
			return false
		}
	case FilterUnverified:
		if rec.VerifiedByHuman {
			return false
		}
	case FilterNoAccount:
		if !rec.NoAccountConfirmed {
			return false
		}
	}

	if f.Legislature != "" && !slices.Contains(rec.Legislatures, f.Legislature) {
		return false
	}

	if f.NameQuery != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(f.NameQuery)) {
		return false
	}

	return true
}
