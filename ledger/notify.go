package ledger

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/log"
	"github.com/cloudx-io/sealedbid/metric"
)

// Notification is one emitted event as observers see it.
type Notification struct {
	ID      uuid.UUID   `json:"id"`
	Kind    string      `json:"kind"`
	Auction core.Pubkey `json:"auction"`
	At      int64       `json:"at"`
	Event   core.Event  `json:"event"`
}

// Notifier keeps the most recent notifications in a ring and fans every new
// one out to subscribers. Subscribers run synchronously after the emitting
// instruction has committed and must not call back into the ledger.
type Notifier struct {
	mu        sync.RWMutex
	ring      []Notification
	next      int
	full      bool
	listeners map[int]func(Notification)
	nextID    int
}

func NewNotifier(capacity int) *Notifier {
	if capacity < 1 {
		capacity = 1
	}
	return &Notifier{
		ring:      make([]Notification, capacity),
		listeners: make(map[int]func(Notification)),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn func(Notification)) (cancel func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) publish(at int64, events []core.Event) {
	for _, ev := range events {
		note := Notification{
			ID:      uuid.New(),
			Kind:    ev.Kind(),
			Auction: ev.AuctionKey(),
			At:      at,
			Event:   ev,
		}

		n.mu.Lock()
		n.ring[n.next] = note
		n.next = (n.next + 1) % len(n.ring)
		if n.next == 0 {
			n.full = true
		}
		listeners := make([]func(Notification), 0, len(n.listeners))
		for _, fn := range n.listeners {
			listeners = append(listeners, fn)
		}
		n.mu.Unlock()

		metric.Notifications.WithLabelValues(note.Kind).Inc()
		log.Infow("notification", "kind", note.Kind, "auction", note.Auction.Short(), "id", note.ID.String())
		for _, fn := range listeners {
			fn(note)
		}
	}
}

// Recent returns up to limit notifications, oldest first. auction filters
// by auction when non-zero.
func (n *Notifier) Recent(auction core.Pubkey, limit int) []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var ordered []Notification
	if n.full {
		ordered = append(ordered, n.ring[n.next:]...)
	}
	ordered = append(ordered, n.ring[:n.next]...)

	out := make([]Notification, 0, len(ordered))
	for _, note := range ordered {
		if auction.IsZero() || note.Auction == auction {
			out = append(out, note)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
