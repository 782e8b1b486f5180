package repository

import (
	"database/sql"
	"testing"
	"time"
)

func TestStringPtrFromNull(t *testing.T) {
	if got := stringPtrFromNull(sql.NullString{}); got != nil {
		t.Fatalf("expected nil for invalid null string, got %v", *got)
	}

	got := stringPtrFromNull(sql.NullString{String: "ana@example.com", Valid: true})
	if got == nil || *got != "ana@example.com" {
		t.Fatalf("unexpected value: %v", got)
	}
}

func TestTimePtrFromNull(t *testing.T) {
	if got := timePtrFromNull(sql.NullTime{}); got != nil {
		t.Fatalf("expected nil for invalid null time, got %v", *got)
	}

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	got := timePtrFromNull(sql.NullTime{Time: at, Valid: true})
	if got == nil || !got.Equal(at) {
		t.Fatalf("unexpected value: %v", got)
	}
}
