package db

import (
	"strings"
	"testing"
)

func TestConvertToMigrateURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"postgres://u:p@localhost:5432/diet?sslmode=disable", "pgx5://u:p@localhost:5432/diet?sslmode=disable", false},
		{"postgresql://u@host/diet", "pgx5://u@host/diet", false},
		{"mysql://u@host/diet", "", true},
		{"://bad", "", true},
	}
	for _, tt := range tests {
		got, err := convertToMigrateURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("convertToMigrateURL(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("convertToMigrateURL(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("convertToMigrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations")
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") && !strings.HasSuffix(name, ".down.sql") {
			t.Errorf("unexpected migration file %q", name)
		}
	}
}
