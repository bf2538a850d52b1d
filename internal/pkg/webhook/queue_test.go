package webhook

import (
	"strconv"
	"testing"
	"time"
)

func TestClaimStuck(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	fresh := strconv.FormatInt(now.Add(-time.Minute).Unix(), 10)
	stale := strconv.FormatInt(now.Add(-stuckThreshold-time.Second).Unix(), 10)
	boundary := strconv.FormatInt(now.Add(-stuckThreshold).Unix(), 10)

	tests := []struct {
		name  string
		claim string
		want  bool
	}{
		{"fresh claim stays", fresh, false},
		{"stale claim is stuck", stale, true},
		{"claim exactly at threshold stays", boundary, false},
		{"missing claim is stuck", "", true},
		{"garbage claim is stuck", "not-a-timestamp", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := claimStuck(tt.claim, now, stuckThreshold); got != tt.want {
				t.Fatalf("claimStuck(%q) = %v, want %v", tt.claim, got, tt.want)
			}
		})
	}
}
