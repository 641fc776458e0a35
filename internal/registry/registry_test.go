package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

// helper: receive one payload with a timeout so tests never hang
func recvPayload(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return p
	case <-time.After(within):
		t.Fatalf("timed out waiting for payload")
		return nil // unreachable
	}
}

func recvNoPayload(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			// channel closed → no further payloads possible
			return
		}
		t.Fatalf("expected no payload within %v, but got: %s", within, p)
	case <-time.After(within):
		// good: nothing arrived
	}
}

func recvView(t *testing.T, r *Registry, within time.Duration) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	outs := make([]chan []byte, 3)
	for i := range outs {
		outs[i] = make(chan []byte, 4)
		r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: fmt.Sprintf("c%d", i), Outbox: outs[i]}
	}

	r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte(`{"type":"reset-tournament"}`)}

	for _, out := range outs {
		got := recvPayload(t, out, 100*time.Millisecond)
		if string(got) != `{"type":"reset-tournament"}` {
			t.Fatalf("wrong payload: %s", got)
		}
	}
}

func TestMembershipAfterDisconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	const n, m = 5, 2
	outs := make([]chan []byte, n)
	for i := range outs {
		outs[i] = make(chan []byte, 4)
		r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: fmt.Sprintf("c%d", i), Outbox: outs[i]}
	}
	for i := 0; i < m; i++ {
		r.Inbox() <- Unsubscribe{Topic: "tournament:t1", ID: fmt.Sprintf("c%d", i)}
	}

	view := recvView(t, r, 100*time.Millisecond)
	if view.Subscribers["tournament:t1"] != n-m {
		t.Fatalf("want %d subscribers, got %d", n-m, view.Subscribers["tournament:t1"])
	}

	r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte("x")}
	for i := 0; i < m; i++ {
		recvNoPayload(t, outs[i], 50*time.Millisecond)
	}
	for i := m; i < n; i++ {
		recvPayload(t, outs[i], 100*time.Millisecond)
	}
}

func TestNoCrossTopicLeakage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	t1 := make(chan []byte, 4)
	t2 := make(chan []byte, 4)
	u1 := make(chan []byte, 4)
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "a", Outbox: t1}
	r.Inbox() <- Subscribe{Topic: "tournament:t2", ID: "b", Outbox: t2}
	r.Inbox() <- Subscribe{Topic: "user:u1", ID: "c", Outbox: u1}

	r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte("for t1")}

	recvPayload(t, t1, 100*time.Millisecond)
	recvNoPayload(t, t2, 50*time.Millisecond)
	recvNoPayload(t, u1, 50*time.Millisecond)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	out := make(chan []byte, 4)
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "a", Outbox: out}
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "a", Outbox: out}

	r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte("once")}

	recvPayload(t, out, 100*time.Millisecond)
	recvNoPayload(t, out, 50*time.Millisecond)
}

func TestUnsubscribeTwiceIsANoOp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	out := make(chan []byte, 4)
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "a", Outbox: out}
	r.Inbox() <- Unsubscribe{Topic: "tournament:t1", ID: "a"}
	r.Inbox() <- Unsubscribe{Topic: "tournament:t1", ID: "a"}

	view := recvView(t, r, 100*time.Millisecond)
	if len(view.Subscribers) != 0 {
		t.Fatalf("expected no live topics, got %+v", view.Subscribers)
	}
}

func TestEmptyTopicIsCollected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	out := make(chan []byte, 4)
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "a", Outbox: out}
	r.Inbox() <- Unsubscribe{Topic: "tournament:t1", ID: "a"}

	view := recvView(t, r, 100*time.Millisecond)
	if _, ok := view.Subscribers["tournament:t1"]; ok {
		t.Fatalf("empty topic should have been collected")
	}

	// No phantom broadcast to anyone.
	r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte("ghost")}
	recvNoPayload(t, out, 50*time.Millisecond)
}

func TestSlowSubscriberIsDroppedWithoutStallingOthers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	slow := make(chan []byte) // no buffer, never read
	fast := make(chan []byte, 8)
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "slow", Outbox: slow}
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "fast", Outbox: fast}

	r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte("one")}

	recvPayload(t, fast, 100*time.Millisecond)
	view := recvView(t, r, 100*time.Millisecond)
	if view.Subscribers["tournament:t1"] != 1 {
		t.Fatalf("expected slow subscriber to be dropped; %+v", view.Subscribers)
	}

	// The dropped subscriber's outbox is closed so its writer terminates.
	select {
	case _, ok := <-slow:
		if ok {
			t.Fatalf("expected closed outbox")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("outbox of dropped subscriber not closed")
	}
}

func TestPerTopicOrderingIsPreserved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	// Every subscriber of the topic must see the same submission order.
	outs := make([]chan []byte, 3)
	for i := range outs {
		outs[i] = make(chan []byte, 16)
		r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: fmt.Sprintf("c%d", i), Outbox: outs[i]}
	}

	for i := 0; i < 10; i++ {
		r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte(fmt.Sprintf("m%d", i))}
	}
	for _, out := range outs {
		for i := 0; i < 10; i++ {
			got := recvPayload(t, out, 100*time.Millisecond)
			if want := fmt.Sprintf("m%d", i); string(got) != want {
				t.Fatalf("out of order: want %s, got %s", want, got)
			}
		}
	}
}

func TestOrderingIsPerTopicNotGlobal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	t1 := make(chan []byte, 16)
	t2 := make(chan []byte, 16)
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "a", Outbox: t1}
	r.Inbox() <- Subscribe{Topic: "tournament:t2", ID: "b", Outbox: t2}

	// Interleave the two topics; each must still see its own submissions in
	// order, independent of the other's.
	for i := 0; i < 5; i++ {
		r.Inbox() <- Broadcast{Topic: "tournament:t1", Payload: []byte(fmt.Sprintf("t1-%d", i))}
		r.Inbox() <- Broadcast{Topic: "tournament:t2", Payload: []byte(fmt.Sprintf("t2-%d", i))}
	}
	for i := 0; i < 5; i++ {
		if got := recvPayload(t, t1, 100*time.Millisecond); string(got) != fmt.Sprintf("t1-%d", i) {
			t.Fatalf("t1 out of order at %d: %s", i, got)
		}
		if got := recvPayload(t, t2, 100*time.Millisecond); string(got) != fmt.Sprintf("t2-%d", i) {
			t.Fatalf("t2 out of order at %d: %s", i, got)
		}
	}
}

func TestShutdownClosesEveryOutbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, zap.NewNop())

	a := make(chan []byte, 4)
	b := make(chan []byte, 4)
	r.Inbox() <- Subscribe{Topic: "tournament:t1", ID: "a", Outbox: a}
	r.Inbox() <- Subscribe{Topic: "user:u1", ID: "b", Outbox: b}

	r.Inbox() <- Shutdown{}

	for _, out := range []chan []byte{a, b} {
		select {
		case _, ok := <-out:
			if ok {
				t.Fatalf("expected closed outbox")
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("outbox not closed on shutdown")
		}
	}
}
