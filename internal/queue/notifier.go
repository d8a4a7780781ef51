package queue

import (
	"context"
	"time"
)

// Notifier publishes instance change notifications onto a queue.
type Notifier struct {
	q   Queue
	now func() time.Time
}

func NewNotifier(q Queue) *Notifier {
	return &Notifier{q: q, now: time.Now}
}

func (n *Notifier) InstanceChanged(ctx context.Context, instanceID string) error {
	return n.q.Publish(ctx, Message{Type: TypeInstanceChanged, Body: instanceID, At: n.now().UTC()})
}
