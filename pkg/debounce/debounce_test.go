package debounce

import (
	"errors"
	"testing"
	"time"

	"github.com/vango-dev/tether/pkg/scope"
	"github.com/vango-dev/tether/pkg/timer"
)

// lifetime renames the embedded *scope.Scope field so the promoted
// Scope() method is not shadowed and owner types satisfy scope.Owner.
type lifetime = scope.Scope

type saver struct {
	*lifetime
	calls []string
}

func (s *saver) Save(tag string) {
	s.calls = append(s.calls, tag)
}

func (s *saver) Touch() {
	s.calls = append(s.calls, "touch")
}

func newSaver() *saver {
	return &saver{lifetime: scope.New(nil)}
}

func newTestCoordinator() (*Coordinator, *timer.Manual) {
	clock := timer.NewManual()
	return NewCoordinator(WithScheduler(clock)), clock
}

func TestCoalescing(t *testing.T) {
	c, clock := newTestCoordinator()
	o := newSaver()
	const delay = 100 * time.Millisecond

	// t=0, t=30, t=60: gaps shorter than the delay
	if err := c.Schedule(o, "Save", delay, "first"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	clock.Advance(30 * time.Millisecond)
	if err := c.Schedule(o, "Save", delay, "second"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	clock.Advance(30 * time.Millisecond)
	if err := c.Schedule(o, "Save", delay, "third"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Quiet period shorter than the delay: nothing fires
	clock.Advance(99 * time.Millisecond)
	if len(o.calls) != 0 {
		t.Fatalf("fired during quiet period: %v", o.calls)
	}

	clock.Advance(time.Millisecond)
	if len(o.calls) != 1 {
		t.Fatalf("fired %d times, want 1", len(o.calls))
	}
	// Latest call's arguments win
	if o.calls[0] != "third" {
		t.Errorf("delivered %q, want %q", o.calls[0], "third")
	}
	// Fire time is delay after the last arm: t=60+100
	if clock.Now() != 160*time.Millisecond {
		t.Errorf("fired at %v, want 160ms", clock.Now())
	}
}

func TestIsolationAcrossOwnersAndTasks(t *testing.T) {
	c, clock := newTestCoordinator()
	a := newSaver()
	b := newSaver()

	c.Schedule(a, "Save", 50*time.Millisecond, "a")
	c.Schedule(b, "Save", 50*time.Millisecond, "b")
	c.Schedule(a, "Touch", 50*time.Millisecond)

	// Re-arming a's Save must not disturb b's Save or a's Touch
	clock.Advance(30 * time.Millisecond)
	c.Schedule(a, "Save", 50*time.Millisecond, "a2")

	clock.Advance(20 * time.Millisecond)
	if len(b.calls) != 1 || b.calls[0] != "b" {
		t.Errorf("owner b calls = %v, want [b]", b.calls)
	}
	if len(a.calls) != 1 || a.calls[0] != "touch" {
		t.Errorf("owner a calls = %v, want [touch]", a.calls)
	}

	clock.Advance(30 * time.Millisecond)
	if len(a.calls) != 2 || a.calls[1] != "a2" {
		t.Errorf("owner a calls = %v, want [touch a2]", a.calls)
	}
}

func TestCancelIdempotent(t *testing.T) {
	c, clock := newTestCoordinator()
	o := newSaver()

	// Cancelling something that was never scheduled is a no-op
	c.Cancel(o, "Save")
	c.Cancel(nil, "Save")

	c.Schedule(o, "Save", 50*time.Millisecond, "x")
	c.Cancel(o, "Save")
	c.Cancel(o, "Save")

	clock.Advance(time.Second)
	if len(o.calls) != 0 {
		t.Errorf("cancelled task fired: %v", o.calls)
	}
	if c.Pending(o, "Save") {
		t.Error("Pending should be false after cancel")
	}
}

func TestDisposalCancelsPending(t *testing.T) {
	c, clock := newTestCoordinator()
	o := newSaver()

	c.Schedule(o, "Save", 50*time.Millisecond, "x")
	c.Schedule(o, "Touch", 50*time.Millisecond)

	o.Dispose()

	if clock.Pending() != 0 {
		t.Errorf("pending timers after dispose = %d, want 0", clock.Pending())
	}
	clock.Advance(time.Second)
	if len(o.calls) != 0 {
		t.Errorf("task fired after owner disposal: %v", o.calls)
	}

	// Scheduling on the disposed owner fails loudly
	if err := c.Schedule(o, "Save", time.Millisecond, "y"); !errors.Is(err, ErrOwnerDisposed) {
		t.Errorf("Schedule on disposed owner = %v, want ErrOwnerDisposed", err)
	}
}

func TestDisposeTwiceSafe(t *testing.T) {
	c, clock := newTestCoordinator()
	o := newSaver()

	c.Schedule(o, "Save", 10*time.Millisecond, "x")
	o.Dispose()
	o.Dispose()

	clock.Advance(time.Second)
	if len(o.calls) != 0 {
		t.Errorf("calls = %v, want none", o.calls)
	}
}

type rearming struct {
	*lifetime
	coord *Coordinator
	fires int
}

func (r *rearming) Ping() {
	r.fires++
	if r.fires == 1 {
		// Re-arming from inside the fire path must create a fresh entry
		if err := r.coord.Schedule(r, "Ping", 10*time.Millisecond); err != nil {
			panic(err)
		}
	}
}

func TestReentrantRearmFromTask(t *testing.T) {
	c, clock := newTestCoordinator()
	r := &rearming{lifetime: scope.New(nil), coord: c}

	c.Schedule(r, "Ping", 10*time.Millisecond)
	clock.Advance(10 * time.Millisecond)
	if r.fires != 1 {
		t.Fatalf("fires = %d, want 1", r.fires)
	}
	if !c.Pending(r, "Ping") {
		t.Fatal("re-registration from inside the task should be pending")
	}

	clock.Advance(10 * time.Millisecond)
	if r.fires != 2 {
		t.Errorf("fires = %d, want 2", r.fires)
	}
}

func TestScheduleErrors(t *testing.T) {
	c, _ := newTestCoordinator()
	o := newSaver()

	if err := c.Schedule(nil, "Save", time.Millisecond); !errors.Is(err, ErrNilOwner) {
		t.Errorf("nil owner = %v, want ErrNilOwner", err)
	}

	var taskErr *TaskError
	if err := c.Schedule(o, "NoSuchTask", time.Millisecond); !errors.As(err, &taskErr) {
		t.Errorf("unknown task = %v, want TaskError", err)
	}
	if err := c.Schedule(o, "Save", time.Millisecond); !errors.As(err, &taskErr) {
		t.Errorf("missing argument = %v, want TaskError", err)
	}
	if err := c.Schedule(o, "Save", time.Millisecond, struct{}{}); !errors.As(err, &taskErr) {
		t.Errorf("wrong argument type = %v, want TaskError", err)
	}
}

type recordingRecorder struct {
	scheduled, rearmed, fired, cancelled int
}

func (r *recordingRecorder) DebounceScheduled(_ string, rearm bool) {
	r.scheduled++
	if rearm {
		r.rearmed++
	}
}
func (r *recordingRecorder) DebounceFired(string)     { r.fired++ }
func (r *recordingRecorder) DebounceCancelled(string) { r.cancelled++ }

func TestRecorderAndMiddleware(t *testing.T) {
	clock := timer.NewManual()
	rec := &recordingRecorder{}

	var wrapped []string
	mw := func(task string, next func()) {
		wrapped = append(wrapped, task)
		next()
	}
	c := NewCoordinator(WithScheduler(clock), WithRecorder(rec), WithMiddleware(mw))
	o := newSaver()

	c.Schedule(o, "Save", 10*time.Millisecond, "a")
	c.Schedule(o, "Save", 10*time.Millisecond, "b")
	clock.Advance(10 * time.Millisecond)

	c.Schedule(o, "Touch", 10*time.Millisecond)
	c.Cancel(o, "Touch")

	if rec.scheduled != 3 || rec.rearmed != 1 {
		t.Errorf("scheduled=%d rearmed=%d, want 3/1", rec.scheduled, rec.rearmed)
	}
	if rec.fired != 1 {
		t.Errorf("fired=%d, want 1", rec.fired)
	}
	if rec.cancelled != 1 {
		t.Errorf("cancelled=%d, want 1", rec.cancelled)
	}
	if len(wrapped) != 1 || wrapped[0] != "Save" {
		t.Errorf("middleware saw %v, want [Save]", wrapped)
	}
	if len(o.calls) != 1 || o.calls[0] != "b" {
		t.Errorf("calls = %v, want [b]", o.calls)
	}
}

func TestVariadicTask(t *testing.T) {
	c, clock := newTestCoordinator()
	o := &variadicOwner{lifetime: scope.New(nil)}

	if err := c.Schedule(o, "Join", 10*time.Millisecond, "a", "b", "c"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	clock.Advance(10 * time.Millisecond)
	if o.got != "a|b|c" {
		t.Errorf("got %q", o.got)
	}
}

type variadicOwner struct {
	*lifetime
	got string
}

func (v *variadicOwner) Join(parts ...string) {
	for i, p := range parts {
		if i > 0 {
			v.got += "|"
		}
		v.got += p
	}
}
