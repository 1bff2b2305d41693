package remote

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/tether/pkg/events"
	"github.com/vango-dev/tether/pkg/listen"
	"github.com/vango-dev/tether/pkg/scope"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRoundTrip(t *testing.T) {
	hub, url := startHub(t)

	target, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer target.Close()

	got := make(chan events.Event, 16)
	target.AddListener("tick", events.NewListener(func(ev events.Event) { got <- ev }))

	// The subscribe frame travels asynchronously; keep broadcasting
	// until the first delivery arrives.
	deadline := time.After(5 * time.Second)
	for {
		hub.Broadcast("tick", map[string]int{"n": 1})
		select {
		case ev := <-got:
			if ev.Type != "tick" {
				t.Errorf("Type = %q, want tick", ev.Type)
			}
			if ev.Target != events.Target(target) {
				t.Error("Target should be the remote target")
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event delivered")
		}
	}
}

func TestLedgerDisposalStopsDelivery(t *testing.T) {
	hub, url := startHub(t)

	target, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer target.Close()

	ledger := listen.NewLedger()
	owner := scope.New(nil)

	got := make(chan struct{}, 16)
	if err := ledger.Subscribe(owner, target, "tick", func(events.Event) { got <- struct{}{} }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Wait for the subscription to become live end to end.
	deadline := time.After(5 * time.Second)
waiting:
	for {
		hub.Broadcast("tick", nil)
		select {
		case <-got:
			break waiting
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("subscription never became live")
		}
	}

	// Disposal detaches the local listener synchronously: frames may
	// still arrive, but nothing dispatches them.
	owner.Dispose()
	time.Sleep(50 * time.Millisecond) // let in-flight dispatches settle
	drain(got)

	for i := 0; i < 5; i++ {
		hub.Broadcast("tick", nil)
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case <-got:
		t.Error("event delivered after owner disposal")
	default:
	}
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
