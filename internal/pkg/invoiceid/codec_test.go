package invoiceid

import (
	"strings"
	"testing"
)

func TestNormalize_Canonical(t *testing.T) {
	t.Parallel()

	id := strings.Repeat("ab", 32)
	got, err := Normalize(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Fatalf("Normalize(%q) = %q, want unchanged", id, got)
	}
}

func TestNormalize_UppercaseAndPrefix(t *testing.T) {
	t.Parallel()

	want := strings.Repeat("ab", 32)
	for _, in := range []string{
		strings.Repeat("AB", 32),
		"0x" + strings.Repeat("ab", 32),
		"  " + strings.Repeat("ab", 32) + " ",
	} {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "short", in: strings.Repeat("ab", 31)},
		{name: "long", in: strings.Repeat("ab", 33)},
		{name: "non hex", in: strings.Repeat("zz", 32)},
		{name: "odd tail", in: strings.Repeat("ab", 31) + "a"},
	}

	for _, tt := range tests {
		if _, err := Normalize(tt.in); err == nil {
			t.Fatalf("%s: expected error for %q", tt.name, tt.in)
		}
	}
}

func TestNew_RoundTrips(t *testing.T) {
	t.Parallel()

	id, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Valid(id) {
		t.Fatalf("generated id %q is not canonical", id)
	}
}
