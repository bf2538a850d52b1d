package poller

import (
	"math"
	"testing"
	"time"
)

func TestStartPollingBeginsAtBase(t *testing.T) {
	t.Parallel()

	m := NewBackoffManager(1200*time.Millisecond, 60*time.Second)
	if m.State() != StateIdle {
		t.Fatalf("new manager should be idle, got %s", m.State())
	}
	m.StartPolling()
	if m.State() != StatePolling {
		t.Fatalf("expected polling, got %s", m.State())
	}
	if m.Delay() != 1200*time.Millisecond {
		t.Fatalf("expected base delay, got %s", m.Delay())
	}
}

func TestFailureGrowsDelayGeometrically(t *testing.T) {
	t.Parallel()

	base := 1200 * time.Millisecond
	max := 60 * time.Second
	m := NewBackoffManager(base, max)
	m.StartPolling()

	for n := 1; n <= 12; n++ {
		m.RecordFailure()
		want := time.Duration(float64(base) * math.Pow(1.7, float64(n)))
		if want > max {
			want = max
		}
		// Delay after N consecutive failures must be at least min(base*1.7^N, max),
		// allowing for float rounding in repeated multiplication.
		if got := m.Delay(); got < want-time.Millisecond {
			t.Fatalf("after %d failures expected delay >= %s, got %s", n, want, got)
		}
		if got := m.Delay(); got > max {
			t.Fatalf("delay %s exceeds ceiling %s", got, max)
		}
	}
}

func TestSuccessResetsToBaseExactly(t *testing.T) {
	t.Parallel()

	base := 1200 * time.Millisecond
	m := NewBackoffManager(base, 60*time.Second)
	m.StartPolling()
	for i := 0; i < 5; i++ {
		m.RecordFailure()
	}
	if m.Delay() == base {
		t.Fatal("delay should have grown before the success")
	}
	m.RecordSuccess()
	if m.Delay() != base {
		t.Fatalf("expected exact reset to base, got %s", m.Delay())
	}
}

func TestFailureClampsAtMax(t *testing.T) {
	t.Parallel()

	m := NewBackoffManager(time.Second, 5*time.Second)
	m.StartPolling()
	for i := 0; i < 50; i++ {
		m.RecordFailure()
	}
	if m.Delay() != 5*time.Second {
		t.Fatalf("expected delay clamped to 5s, got %s", m.Delay())
	}
}

func TestSuspendPreservesDelay(t *testing.T) {
	t.Parallel()

	m := NewBackoffManager(time.Second, time.Minute)
	m.StartPolling()
	m.RecordFailure()
	m.RecordFailure()
	backedOff := m.Delay()

	m.Suspend()
	if m.State() != StateSuspended {
		t.Fatalf("expected suspended, got %s", m.State())
	}
	if m.Delay() != backedOff {
		t.Fatalf("suspend must not touch delay: had %s, got %s", backedOff, m.Delay())
	}

	m.Resume(false)
	if m.State() != StatePolling {
		t.Fatalf("expected polling after resume, got %s", m.State())
	}
	if m.Delay() != backedOff {
		t.Fatalf("resume must keep the backed-off delay: had %s, got %s", backedOff, m.Delay())
	}
}

func TestResumeTerminalGoesIdle(t *testing.T) {
	t.Parallel()

	m := NewBackoffManager(time.Second, time.Minute)
	m.StartPolling()
	m.Suspend()
	m.Resume(true)
	if m.State() != StateIdle {
		t.Fatalf("terminal subject should go idle on resume, got %s", m.State())
	}
}

func TestSuspendIdleIsNoOp(t *testing.T) {
	t.Parallel()

	m := NewBackoffManager(time.Second, time.Minute)
	m.Suspend()
	if m.State() != StateIdle {
		t.Fatalf("suspending an idle manager must stay idle, got %s", m.State())
	}
	m.Resume(false)
	if m.State() != StateIdle {
		t.Fatalf("resuming a non-suspended manager must stay idle, got %s", m.State())
	}
}

func TestStopResetsState(t *testing.T) {
	t.Parallel()

	m := NewBackoffManager(time.Second, time.Minute)
	m.StartPolling()
	m.RecordFailure()
	m.Stop()
	if m.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %s", m.State())
	}
	if m.Delay() != time.Second {
		t.Fatalf("expected base delay after stop, got %s", m.Delay())
	}
	m.StartPolling()
	if m.State() != StatePolling || m.Delay() != time.Second {
		t.Fatal("restart after stop should poll at base cadence")
	}
}

func TestNewBackoffManagerDefaults(t *testing.T) {
	t.Parallel()

	m := NewBackoffManager(0, 0)
	if m.Delay() != DefaultBaseDelay {
		t.Fatalf("expected default base, got %s", m.Delay())
	}
	// max below base is raised to base
	m = NewBackoffManager(10*time.Second, time.Second)
	m.StartPolling()
	m.RecordFailure()
	if m.Delay() != 10*time.Second {
		t.Fatalf("expected delay clamped to base-as-max, got %s", m.Delay())
	}
}
