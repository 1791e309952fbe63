package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/utakingdom/reverse/internal/channel"
)

func recvEvent(t *testing.T, c *Conn) channel.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return channel.Event{}
	}
}

func TestBroadcastReachesAllCurrentSubscribers(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()
	a := b.Join("ROOM1")
	c := b.Join("ROOM1")
	other := b.Join("ROOM2")

	ev, err := channel.NewEvent("gameStateUpdate", "sender-a", map[string]any{"phase": "LOBBY"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Send(ctx, ev); err != nil {
		t.Fatal(err)
	}

	// sender receives its own event too
	if got := recvEvent(t, a); got.SenderID != "sender-a" {
		t.Fatalf("sender should see own event, got %+v", got)
	}
	if got := recvEvent(t, c); got.Name != "gameStateUpdate" {
		t.Fatalf("subscriber missed event, got %+v", got)
	}

	select {
	case ev := <-other.Events():
		t.Fatalf("event leaked across rooms: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLateJoinerMissesEarlierSends(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()
	a := b.Join("ROOM")

	ev, _ := channel.NewEvent("topicSubmitted", "a", nil)
	if err := a.Send(ctx, ev); err != nil {
		t.Fatal(err)
	}

	late := b.Join("ROOM")
	select {
	case ev := <-late.Events():
		t.Fatalf("late joiner should not receive earlier sends, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPerSenderOrdering(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()
	sender := b.Join("ROOM")
	receiver := b.Join("ROOM")

	for i := 0; i < 20; i++ {
		payload, _ := json.Marshal(i)
		ev := channel.Event{Name: "seq", SenderID: "s", Payload: payload}
		if err := sender.Send(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 20; i++ {
		ev := recvEvent(t, receiver)
		var got int
		if err := json.Unmarshal(ev.Payload, &got); err != nil {
			t.Fatal(err)
		}
		if got != i {
			t.Fatalf("out of order: expected %d, got %d", i, got)
		}
	}
}

func TestDuplicateDelivery(t *testing.T) {
	b := NewBroker()
	b.SetDuplicates(true)
	ctx := context.Background()
	sender := b.Join("ROOM")
	receiver := b.Join("ROOM")

	ev, _ := channel.NewEvent("topicSubmitted", "s", nil)
	if err := sender.Send(ctx, ev); err != nil {
		t.Fatal(err)
	}
	first := recvEvent(t, receiver)
	second := recvEvent(t, receiver)
	if first.Name != second.Name {
		t.Fatal("duplicate should be identical")
	}
}

func TestPresenceTrackAndReplace(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()
	a := b.Join("ROOM")
	c := b.Join("ROOM")

	recvPresence := func(conn *Conn) []channel.PresenceInfo {
		t.Helper()
		select {
		case p := <-conn.Presence():
			return p
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for presence")
			return nil
		}
	}

	if err := a.Track(ctx, channel.PresenceInfo{ID: "pa", Name: "Alice", JoinedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if got := recvPresence(c); len(got) != 1 || got[0].Name != "Alice" {
		t.Fatalf("expected Alice in presence, got %+v", got)
	}

	// re-announcement replaces, not duplicates
	if err := a.Track(ctx, channel.PresenceInfo{ID: "pa", Name: "Alice II", JoinedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if got := recvPresence(c); len(got) != 1 || got[0].Name != "Alice II" {
		t.Fatalf("expected replaced entry, got %+v", got)
	}

	// disconnect removes the entry
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if got := recvPresence(c); len(got) != 0 {
		t.Fatalf("expected empty presence after leave, got %+v", got)
	}
}

func TestSendOnClosedChannel(t *testing.T) {
	b := NewBroker()
	c := b.Join("ROOM")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	ev, _ := channel.NewEvent("x", "s", nil)
	if err := c.Send(context.Background(), ev); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestManySubscribers(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()
	conns := make([]*Conn, 8)
	for i := range conns {
		conns[i] = b.Join("ROOM")
	}
	ev, _ := channel.NewEvent("hello", "s", "payload")
	if err := conns[0].Send(ctx, ev); err != nil {
		t.Fatal(err)
	}
	for _, c := range conns {
		if got := recvEvent(t, c); got.Name != "hello" {
			t.Fatalf("missed broadcast: %+v", got)
		}
	}
}
