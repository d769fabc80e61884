package core

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
)

func exportFixture() []PersonRecord {
	alice := "alice_tk"
	return []PersonRecord{
		{
			ID:                    1,
			Name:                  "Alice Martin",
			Legislatures:          []string{"16", "17"},
			VerifiedByHuman:       true,
			HumanVerifiedUsername: &alice,
		},
		{
			ID:   2,
			Name: "Bernard Dupont", // unverified, must not be exported
		},
		{
			ID:                 3,
			Name:               "Claire Bernard",
			VerifiedByHuman:    true,
			NoAccountConfirmed: true,
		},
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, exportFixture()); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading export back: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want header + 2 verified records", len(rows))
	}

	wantHeader := []string{"id", "name", "legislatures", "username", "profile_url", "no_account"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}

	account := rows[1]
	if account[1] != "Alice Martin" || account[3] != "alice_tk" {
		t.Errorf("account row = %v", account)
	}
	if account[2] != "16, 17" {
		t.Errorf("legislatures = %q, want %q", account[2], "16, 17")
	}
	if account[4] != "https://www.tiktok.com/@alice_tk" {
		t.Errorf("profile_url = %q", account[4])
	}
	if account[5] != "false" {
		t.Errorf("no_account = %q, want false", account[5])
	}

	noAccount := rows[2]
	if noAccount[1] != "Claire Bernard" || noAccount[3] != "" || noAccount[4] != "" {
		t.Errorf("no-account row = %v, want empty username and profile", noAccount)
	}
	if noAccount[5] != "true" {
		t.Errorf("no_account = %q, want true", noAccount[5])
	}
}

func TestExportCSV_EmptySet(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, nil); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading export back: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want header only", len(rows))
	}
}

func TestReadVerificationSnapshot_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, exportFixture()); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	entries, err := ReadVerificationSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadVerificationSnapshot() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Name != "Alice Martin" || entries[0].Username != "alice_tk" || entries[0].NoAccount {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Name != "Claire Bernard" || !entries[1].NoAccount {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestReadVerificationSnapshot_ReorderedColumns(t *testing.T) {
	in := "username,no_account,name\nalice_tk,false,Alice Martin\n"
	entries, err := ReadVerificationSnapshot(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadVerificationSnapshot() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Alice Martin" || entries[0].Username != "alice_tk" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestReadVerificationSnapshot_SkipsUndecidedRows(t *testing.T) {
	in := strings.Join([]string{
		"id,name,legislatures,username,profile_url,no_account",
		"1,Alice Martin,16,alice_tk,https://www.tiktok.com/@alice_tk,false",
		"2,Bernard Dupont,17,,,false", // no decision, nothing to replay
		"3,,16,ghost,,false",          // no name, cannot be matched
	}, "\n")

	entries, err := ReadVerificationSnapshot(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadVerificationSnapshot() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Alice Martin" {
		t.Errorf("entries = %+v, want only Alice Martin", entries)
	}
}

func TestReadVerificationSnapshot_BadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty input", ""},
		{"no name column", "id,username,no_account\n1,alice,false\n"},
		{"no decision columns", "id,name\n1,Alice Martin\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadVerificationSnapshot(strings.NewReader(tt.in))
			if !IsValidation(err) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}
