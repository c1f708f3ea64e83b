package events

import (
	"sync"

	"github.com/google/uuid"
)

type Topic string

const (
	TopicWebhookCreated Topic = "WEBHOOK.CREATED"
	TopicWebhookUpdated Topic = "WEBHOOK.UPDATED"
	TopicWebhookDeleted Topic = "WEBHOOK.DELETED"
)

// Event is a bus payload. EndpointID scopes delivery: the filter layer only
// passes an event to subscribers watching that endpoint.
type Event interface {
	Topic() Topic
	EndpointID() int64
}

// Bus is an in-process broadcast channel keyed by topic. Every live
// subscription to a topic receives every event published to it after the
// subscription was created; there is no replay. Publish never blocks on
// subscriber consumption: each subscription has a bounded buffer and the
// oldest buffered event is dropped when a subscriber falls behind.
//
// A Bus is constructed once at startup and passed by handle to publishers and
// subscription endpoints. Close drains the registry and closes every
// subscriber channel.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[*Subscription]struct{}
	buffer int
	closed bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[Topic]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription is one independent live stream of events for a single topic.
type Subscription struct {
	id    string
	topic Topic
	ch    chan Event
	bus   *Bus
	once  sync.Once
}

func (s *Subscription) ID() string   { return s.id }
func (s *Subscription) Topic() Topic { return s.topic }

// Events is closed when the subscription is closed, by either side.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unregisters the subscription and closes its channel. Safe to call
// more than once and safe against concurrent Publish.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.once.Do(func() { close(s.ch) })
}

func (b *Bus) Subscribe(topic Topic) *Subscription {
	s := &Subscription{
		id:    uuid.New().String(),
		topic: topic,
		ch:    make(chan Event, b.buffer),
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][s] = struct{}{}
	return s
}

// Publish delivers ev to every current subscriber of its topic. It is
// fire-and-forget: a full subscriber buffer loses its oldest event instead of
// stalling the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for s := range b.subs[ev.Topic()] {
		select {
		case s.ch <- ev:
		default:
			// Buffer full: evict the oldest event, then retry once. If a
			// concurrent publisher won the slot, this event is the one lost.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
		}
	}
}

// SubscriberCount reports the live subscriptions per topic.
func (b *Bus) SubscriberCount() map[Topic]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[Topic]int, len(b.subs))
	for topic, set := range b.subs {
		counts[topic] = len(set)
	}
	return counts
}

// Close shuts the bus down. Later publishes are dropped and later subscribes
// return an already-closed subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	var all []*Subscription
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.subs = make(map[Topic]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, s := range all {
		s.once.Do(func() { close(s.ch) })
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[s.topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.topic)
		}
	}
}
