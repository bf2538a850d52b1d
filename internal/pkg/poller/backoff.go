package poller

import (
	"strconv"
	"sync"
	"time"

	"github.com/stacksgate/stacksgate/internal/pkg/env"
)

// PollState is the closed set of polling lifecycle states.
type PollState int

const (
	StateIdle PollState = iota
	StatePolling
	StateSuspended
)

func (s PollState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSuspended:
		return "suspended"
	}
	return "unknown"
}

// backoffFactor is the multiplicative delay growth applied per failure.
const backoffFactor = 1.7

// Defaults when POLL_BASE_MS / POLL_MAX_MS are unset.
const (
	DefaultBaseDelay = 1200 * time.Millisecond
	DefaultMaxDelay  = 60 * time.Second
)

// BaseDelayFromEnv reads the baseline poll cadence from POLL_BASE_MS.
func BaseDelayFromEnv() time.Duration {
	return msEnv("POLL_BASE_MS", DefaultBaseDelay)
}

// MaxDelayFromEnv reads the backoff ceiling from POLL_MAX_MS.
func MaxDelayFromEnv() time.Duration {
	return msEnv("POLL_MAX_MS", DefaultMaxDelay)
}

func msEnv(key string, def time.Duration) time.Duration {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// BackoffManager drives the polling cadence for one subject. Failures grow the
// delay multiplicatively up to a ceiling, one success snaps it back to the
// baseline, and suspension pauses polling without losing accumulated backoff.
type BackoffManager struct {
	mu    sync.Mutex
	state PollState
	base  time.Duration
	max   time.Duration
	delay time.Duration
}

// NewBackoffManager creates a manager in the idle state.
func NewBackoffManager(base, max time.Duration) *BackoffManager {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max < base {
		max = base
	}
	return &BackoffManager{
		state: StateIdle,
		base:  base,
		max:   max,
		delay: base,
	}
}

// State returns the current lifecycle state.
func (m *BackoffManager) State() PollState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Delay returns the wait before the next poll tick.
func (m *BackoffManager) Delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

// StartPolling begins fixed-interval polling at the baseline cadence. Starting
// an already polling or suspended manager is a no-op.
func (m *BackoffManager) StartPolling() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return
	}
	m.state = StatePolling
	m.delay = m.base
}

// RecordFailure grows the delay by the backoff factor, clamped to the ceiling,
// and returns the wait before the retry.
func (m *BackoffManager) RecordFailure() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := time.Duration(float64(m.delay) * backoffFactor)
	if next > m.max {
		next = m.max
	}
	if next < m.base {
		next = m.base
	}
	m.delay = next
	return m.delay
}

// RecordSuccess resets the cadence to the baseline.
func (m *BackoffManager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = m.base
}

// Suspend halts polling without resetting the accumulated delay. Suspending an
// idle manager is a no-op.
func (m *BackoffManager) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePolling {
		m.state = StateSuspended
	}
}

// Resume restarts polling from the current backed-off delay. When the subject
// has already reached a terminal state the manager goes idle instead.
func (m *BackoffManager) Resume(terminal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSuspended {
		return
	}
	if terminal {
		m.state = StateIdle
		return
	}
	m.state = StatePolling
}

// Stop returns the manager to idle. The next StartPolling begins at baseline.
func (m *BackoffManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.delay = m.base
}
