package events

import (
	"context"
	"sync"
)

// Predicate decides whether one event may be delivered to one subscriber. It
// runs on the subscriber's own pump goroutine, so it may block on a storage
// lookup without stalling delivery to anyone else. Returning false skips the
// event and keeps the stream open; returning an error is a hard failure that
// closes the stream.
type Predicate func(ctx context.Context, ev Event) (bool, error)

// FilteredSubscription merges one raw bus subscription per requested topic and
// re-evaluates a predicate for every incoming event. Authorization is never
// cached across events: entitlement can change while the stream is open, and
// an event that fails the predicate is silently skipped.
type FilteredSubscription struct {
	out    chan Event
	cancel context.CancelFunc
	raws   []*Subscription

	mu  sync.Mutex
	err error
}

// Subscribe registers a filtered stream for the given topics. The stream ends
// when ctx is cancelled, Close is called, the bus shuts down, or the predicate
// returns a hard error; in every case the raw subscriptions are unregistered
// from the bus.
func Subscribe(ctx context.Context, bus *Bus, topics []Topic, pred Predicate) *FilteredSubscription {
	ctx, cancel := context.WithCancel(ctx)

	f := &FilteredSubscription{
		out:    make(chan Event),
		cancel: cancel,
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		raw := bus.Subscribe(topic)
		f.raws = append(f.raws, raw)

		wg.Add(1)
		go func(raw *Subscription) {
			defer wg.Done()
			f.pump(ctx, raw, pred)
		}(raw)
	}

	go func() {
		wg.Wait()
		for _, raw := range f.raws {
			raw.Close()
		}
		close(f.out)
	}()

	return f
}

// Events yields the payloads that passed the predicate, in per-topic publish
// order. The channel is closed when the stream ends; check Err afterwards.
func (f *FilteredSubscription) Events() <-chan Event { return f.out }

// Err reports the hard predicate failure that terminated the stream, if any.
func (f *FilteredSubscription) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *FilteredSubscription) Close() { f.cancel() }

func (f *FilteredSubscription) pump(ctx context.Context, raw *Subscription, pred Predicate) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-raw.Events():
			if !ok {
				return
			}

			allowed, err := pred(ctx, ev)
			if err != nil {
				f.fail(err)
				return
			}
			if !allowed {
				continue
			}

			select {
			case f.out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *FilteredSubscription) fail(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()
	f.cancel()
}
