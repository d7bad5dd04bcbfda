package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/forgo/vitals/internal/database"
)

func TestExtractRecordID(t *testing.T) {
	rid := models.RecordID{Table: "alert", ID: "abc"}

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "alert:abc", "alert:abc"},
		{"record id", rid, rid.String()},
		{"record id pointer", &rid, rid.String()},
		{"tb/id map", map[string]any{"tb": "alert", "id": "abc"}, "alert:abc"},
		{"nil", nil, ""},
		{"number", 42, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractRecordID(tt.in); got != tt.want {
				t.Errorf("extractRecordID(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := []any{
		want,
		"2026-01-02T03:04:05Z",
		models.CustomDateTime{Time: want},
		&models.CustomDateTime{Time: want},
	}
	for _, in := range cases {
		if got := parseTime(in); !got.Equal(want) {
			t.Errorf("parseTime(%#v) = %v, want %v", in, got, want)
		}
	}

	if got := parseTime("yesterday"); !got.IsZero() {
		t.Errorf("expected zero time for garbage, got %v", got)
	}
}

func TestIsUniqueConstraintError(t *testing.T) {
	if isUniqueConstraintError(nil) {
		t.Error("nil is not a constraint error")
	}
	if !isUniqueConstraintError(&database.StatementError{Message: "Database index `alert_key` already contains 'outage-1', with record `alert:x`"}) {
		t.Error("expected unique index violation to match")
	}
	if !isUniqueConstraintError(errors.New("Database record `alert:x` already exists")) {
		t.Error("expected record id clash to match")
	}
	if isUniqueConstraintError(errors.New("Found 'x' for field `severity`, but field must conform to: $value IN [...]")) {
		t.Error("assertion failure is not a constraint error")
	}
	if isUniqueConstraintError(errors.New("connection reset")) {
		t.Error("connection reset is not a constraint error")
	}
}

func TestExtractCountValue(t *testing.T) {
	for _, in := range []any{float64(4), float32(4), 4, int64(4), uint64(4)} {
		if got := extractCountValue(in); got != 4 {
			t.Errorf("extractCountValue(%T) = %d, want 4", in, got)
		}
	}
	if got := extractCountValue("4"); got != 0 {
		t.Errorf("expected 0 for string, got %d", got)
	}
}
