package envutil

import (
	"testing"
	"time"
)

func TestStringFallsBackWhenUnsetOrBlank(t *testing.T) {
	t.Setenv("SEGBRIDGE_TEST_STR", "  ")
	if got := String("SEGBRIDGE_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
	t.Setenv("SEGBRIDGE_TEST_STR", " value ")
	if got := String("SEGBRIDGE_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestIntRejectsGarbage(t *testing.T) {
	t.Setenv("SEGBRIDGE_TEST_INT", "not-a-number")
	if got := Int("SEGBRIDGE_TEST_INT", 7); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
	t.Setenv("SEGBRIDGE_TEST_INT", "42")
	if got := Int("SEGBRIDGE_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestBoolSpellings(t *testing.T) {
	cases := map[string]bool{
		"1": true, "t": true, "TRUE": true, "Yes": true, "on": true,
		"0": false, "f": false, "False": false, "no": false, "OFF": false,
	}
	for raw, want := range cases {
		t.Setenv("SEGBRIDGE_TEST_BOOL", raw)
		if got := Bool("SEGBRIDGE_TEST_BOOL", !want); got != want {
			t.Fatalf("Bool(%q) = %v, want %v", raw, got, want)
		}
	}
	t.Setenv("SEGBRIDGE_TEST_BOOL", "maybe")
	if got := Bool("SEGBRIDGE_TEST_BOOL", true); got != true {
		t.Fatalf("unparseable value should keep default")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("SEGBRIDGE_TEST_DUR", "250ms")
	if got := Duration("SEGBRIDGE_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	t.Setenv("SEGBRIDGE_TEST_DUR", "soon")
	if got := Duration("SEGBRIDGE_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("expected default 1s, got %v", got)
	}
}
