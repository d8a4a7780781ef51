package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	n := NewNotifier(q)
	for _, id := range []string{"i1", "i2"} {
		if err := n.InstanceChanged(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"i1", "i2"} {
		select {
		case msg := <-msgs:
			if msg.Type != TypeInstanceChanged || msg.Body != want || msg.At.IsZero() {
				t.Errorf("got %+v, want change of %s", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Error("received message after cancel")
		}
	case <-time.After(time.Second):
		t.Error("consumer channel not closed after cancel")
	}
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	if err := q.Publish(context.Background(), Message{Type: "x"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, Message{Type: "x"}); err == nil {
		t.Error("Publish on a full queue succeeded")
	}
}

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	raw, err := Encode(Message{Type: TypeInstanceChanged, Body: "a|b", At: at})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeInstanceChanged || msg.Body != "a|b" || !msg.At.Equal(at) {
		t.Errorf("Decode() = %+v", msg)
	}

	for _, bad := range []string{"", "not json", `{"body":"x"}`} {
		if _, err := Decode(bad); err == nil {
			t.Errorf("Decode(%q) succeeded", bad)
		}
	}
}
