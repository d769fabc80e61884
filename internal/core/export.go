package core

// export.go serializes verified records to CSV and reads such exports back
// as verification snapshots. The snapshot path exists so a record set can
// be rebuilt from a fresh payload and then have previously exported human
// decisions replayed onto it, since a rebuild intentionally drops them.

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExportFilename is the fixed attachment name for CSV downloads.
const ExportFilename = "verified_accounts.csv"

var exportHeader = []string{"id", "name", "legislatures", "username", "profile_url", "no_account"}

// ExportCSV writes one row per human-verified record, in input order, with
// a fixed column layout. Confirmed-no-account records appear with an empty
// username. Rows are buffered by the CSV writer, so a failing write never
// leaves a partially written row.
func ExportCSV(w io.Writer, records []PersonRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	for _, rec := range records {
		if !rec.VerifiedByHuman {
			continue
		}
		var username, profile string
		if !rec.NoAccountConfirmed && rec.HumanVerifiedUsername != nil {
			username = *rec.HumanVerifiedUsername
			profile = ProfileURLFor(username)
		}
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Name,
			strings.Join(rec.Legislatures, ", "),
			username,
			profile,
			strconv.FormatBool(rec.NoAccountConfirmed),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write export row for record %d: %w", rec.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SnapshotEntry is one replayable decision from an exported CSV.
type SnapshotEntry struct {
	Name      string
	Username  string
	NoAccount bool
}

// ReadVerificationSnapshot parses a previously exported CSV. Rows that name
// neither a username nor a no-account decision are skipped; they carry
// nothing to replay. Column order follows the export header, located by
// name so hand-edited files with reordered columns still load.
func ReadVerificationSnapshot(r io.Reader) ([]SnapshotEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, ValidationError{Reason: "snapshot is missing a header row"}
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	nameIdx, ok := idx["name"]
	if !ok {
		return nil, ValidationError{Reason: `snapshot header has no "name" column`}
	}
	userIdx, hasUser := idx["username"]
	noAccIdx, hasNoAcc := idx["no_account"]
	if !hasUser && !hasNoAcc {
		return nil, ValidationError{Reason: "snapshot header names no decision columns"}
	}

	var entries []SnapshotEntry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ValidationError{Reason: "malformed snapshot row: " + err.Error()}
		}

		e := SnapshotEntry{Name: strings.TrimSpace(field(row, nameIdx))}
		if e.Name == "" {
			continue
		}
		if hasUser {
			e.Username = strings.TrimSpace(field(row, userIdx))
		}
		if hasNoAcc {
			e.NoAccount, _ = strconv.ParseBool(strings.TrimSpace(field(row, noAccIdx)))
		}
		if e.Username == "" && !e.NoAccount {
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
