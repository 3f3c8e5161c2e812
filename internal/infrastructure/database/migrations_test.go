package database

import "testing"

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"up migration", "20260315_100000_initial_schema.up.sql", "20260315_100000", true, true},
		{"down migration", "20260315_100000_initial_schema.down.sql", "20260315_100000", false, true},
		{"not sql", "20260315_100000_initial_schema.up.txt", "", false, false},
		{"no direction", "20260315_100000_initial_schema.sql", "", false, false},
		{"no version", "readme.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	got := extractMigrationName("20260315_100000_initial_schema.up.sql")
	if got != "initial_schema" {
		t.Errorf("extractMigrationName = %q, want %q", got, "initial_schema")
	}
}
