package webhook

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	body := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	now := time.Unix(1700000000, 0)

	sig := Sign(secret, now.Unix(), body)
	if !strings.HasPrefix(sig, "v1=") {
		t.Fatalf("signature missing version prefix: %s", sig)
	}

	if err := Verify(secret, strconv.FormatInt(now.Unix(), 10), sig, body, now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	now := time.Unix(1700000000, 0)
	sig := Sign(secret, now.Unix(), []byte(`{"amount":100}`))

	err := Verify(secret, strconv.FormatInt(now.Unix(), 10), sig, []byte(`{"amount":999}`), now)
	if err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	body := []byte(`{}`)
	sig := Sign("secret-a", now.Unix(), body)

	err := Verify("secret-b", strconv.FormatInt(now.Unix(), 10), sig, body, now)
	if err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsSkew(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	body := []byte(`{}`)
	now := time.Unix(1700000000, 0)

	cases := []struct {
		name   string
		signed int64
		want   error
	}{
		{"too old", now.Unix() - 301, ErrStaleTimestamp},
		{"too far ahead", now.Unix() + 301, ErrStaleTimestamp},
		{"at the edge", now.Unix() - 300, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := Sign(secret, tc.signed, body)
			err := Verify(secret, strconv.FormatInt(tc.signed, 10), sig, body, now)
			if err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestVerifyRejectsMalformedTimestamp(t *testing.T) {
	t.Parallel()

	err := Verify("secret", "not-a-number", "v1=00", []byte(`{}`), time.Now())
	if err != ErrBadTimestamp {
		t.Fatalf("expected ErrBadTimestamp, got %v", err)
	}
}

func TestParseBackoffSchedule(t *testing.T) {
	t.Parallel()

	schedule, err := ParseBackoffSchedule("0s,60s,120s,240s,480s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{0, 60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second}
	if len(schedule) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(schedule))
	}
	for i := range want {
		if schedule[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], schedule[i])
		}
	}
}

func TestParseBackoffScheduleForcesMonotone(t *testing.T) {
	t.Parallel()

	schedule, err := ParseBackoffSchedule("60s,10s,120s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schedule[1] != 60*time.Second {
		t.Fatalf("expected shrinking step raised to 60s, got %s", schedule[1])
	}
}

func TestParseBackoffScheduleRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseBackoffSchedule("1m,banana"); err == nil {
		t.Fatal("expected error for malformed duration")
	}
	if _, err := ParseBackoffSchedule(""); err == nil {
		t.Fatal("expected error for empty schedule")
	}
}
