package events

import "sync/atomic"

// SubscribeToChannel forwards every T published on bus into ch without
// blocking the publisher. Events that find ch full are dropped and, when
// dropped is non-nil, counted there.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any, dropped *atomic.Uint64) func() {
	return bus.Subscribe(func(e T) {
		select {
		case ch <- e:
		default:
			if dropped != nil {
				dropped.Add(1)
			}
		}
	})
}
