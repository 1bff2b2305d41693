package events

import "testing"

func TestEmitterDispatchOrder(t *testing.T) {
	e := NewEmitter()

	var order []string
	e.AddListener("click", NewListener(func(Event) { order = append(order, "a") }))
	e.AddListener("click", NewListener(func(Event) { order = append(order, "b") }))

	e.Emit("click", nil)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("dispatch order = %v, want [a b]", order)
	}
}

func TestEmitterPayloadAndTarget(t *testing.T) {
	e := NewEmitter()

	var got Event
	e.AddListener("change", NewListener(func(ev Event) { got = ev }))
	e.Emit("change", 42)

	if got.Type != "change" {
		t.Errorf("Type = %q", got.Type)
	}
	if got.Data != 42 {
		t.Errorf("Data = %v", got.Data)
	}
	if got.Target != Target(e) {
		t.Error("Target should be the emitter")
	}
}

func TestEmitterDuplicateRegistrations(t *testing.T) {
	e := NewEmitter()

	count := 0
	l := NewListener(func(Event) { count++ })
	e.AddListener("click", l)
	e.AddListener("click", l)

	e.Emit("click", nil)
	if count != 2 {
		t.Fatalf("duplicate registration fired %d times, want 2", count)
	}

	// Removal detaches one occurrence per call
	e.RemoveListener("click", l)
	count = 0
	e.Emit("click", nil)
	if count != 1 {
		t.Errorf("after one removal fired %d times, want 1", count)
	}
}

func TestEmitterRemoveUnknownListener(t *testing.T) {
	e := NewEmitter()
	e.RemoveListener("click", NewListener(func(Event) {}))
	if n := e.ListenerCount("click"); n != 0 {
		t.Errorf("ListenerCount = %d", n)
	}
}

func TestEmitterOnce(t *testing.T) {
	e := NewEmitter()

	count := 0
	e.AddListenerOptions("tick", NewListener(func(Event) { count++ }), Options{Once: true})

	e.Emit("tick", nil)
	e.Emit("tick", nil)

	if count != 1 {
		t.Errorf("once listener fired %d times, want 1", count)
	}
	if e.ListenerCount("tick") != 0 {
		t.Error("once listener should be detached")
	}
}

func TestApplyOptions(t *testing.T) {
	o := Apply(Capture(), Passive(), Once())
	if !o.Capture || !o.Passive || !o.Once {
		t.Errorf("Apply = %+v", o)
	}
	if (Apply() != Options{}) {
		t.Error("Apply() should be the zero Options")
	}
}
