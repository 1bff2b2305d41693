package timer

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by explicit Advance calls instead of the
// wall clock. Tests use it to step virtual time deterministically:
//
//	clock := timer.NewManual()
//	tok := clock.Schedule(100*time.Millisecond, fired)
//	clock.Advance(99 * time.Millisecond) // nothing fires
//	clock.Advance(time.Millisecond)      // fired runs
//
// Callbacks run synchronously on the goroutine calling Advance, in
// deadline order (FIFO among equal deadlines). A callback may schedule
// or cancel further work; newly scheduled work fires within the same
// Advance if it falls due before the target time.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	seq     uint64
	fn      func()
	stopped bool
}

// NewManual creates a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Schedule arms fn to run when virtual time reaches now+d.
func (m *Manual) Schedule(d time.Duration, fn func()) Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	mt := &manualTimer{at: m.now + d, seq: m.seq, fn: fn}
	m.pending = append(m.pending, mt)
	return mt
}

// Cancel revokes a pending invocation. Reports whether it was prevented.
func (m *Manual) Cancel(tok Token) bool {
	mt, ok := tok.(*manualTimer)
	if !ok || mt == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if mt.stopped {
		return false
	}
	mt.stopped = true
	for i, p := range m.pending {
		if p == mt {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves virtual time forward by d, running every due callback
// in deadline order. Callbacks run with the lock released so they may
// re-enter the scheduler.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d

	for {
		next := m.earliestLocked(target)
		if next == nil {
			break
		}
		if next.at > m.now {
			m.now = next.at
		}
		m.removeLocked(next)
		next.stopped = true
		m.mu.Unlock()
		next.fn()
		m.mu.Lock()
	}

	m.now = target
	m.mu.Unlock()
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of armed invocations.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// earliestLocked returns the pending timer with the smallest (at, seq)
// no later than target, or nil.
func (m *Manual) earliestLocked(target time.Duration) *manualTimer {
	var best *manualTimer
	for _, p := range m.pending {
		if p.at > target {
			continue
		}
		if best == nil || p.at < best.at || (p.at == best.at && p.seq < best.seq) {
			best = p
		}
	}
	return best
}

func (m *Manual) removeLocked(mt *manualTimer) {
	for i, p := range m.pending {
		if p == mt {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}
