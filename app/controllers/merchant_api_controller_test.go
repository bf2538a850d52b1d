package controllers

import "testing"

func TestMagicLinkExpiry(t *testing.T) {
	t.Parallel()

	const now = int64(1_700_000_000)
	quoteExpMs := (now + 900) * 1000 // quote valid for 15 minutes

	tests := []struct {
		name string
		ttl  int64
		want int64
	}{
		{"zero ttl defaults to quote expiry", 0, now + 900},
		{"short ttl is honored", 300, now + 300},
		{"ttl at the quote boundary is honored", 900, now + 900},
		{"ttl beyond the quote is clamped", 86400, now + 900},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := magicLinkExpiry(now, tt.ttl, quoteExpMs); got != tt.want {
				t.Fatalf("magicLinkExpiry(ttl=%d) = %d, want %d", tt.ttl, got, tt.want)
			}
		})
	}
}
