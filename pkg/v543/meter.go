package v543

import "sync"

// Meter holds the most recent reading of the instrument.
// The acquisition replaces the reading as a whole, so readers never see fields
// of two different frames.
type Meter struct {
	mu      sync.RWMutex
	reading Reading
	subs    map[chan Reading]struct{}
}

// NewMeter returns a meter holding the zero reading.
// The zero value of Meter is ready to use as well.
func NewMeter() *Meter {
	return &Meter{subs: map[chan Reading]struct{}{}}
}

// Reading returns a copy of the current reading.
func (m *Meter) Reading() Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reading
}

// Publish replaces the current reading and forwards it to the subscribers.
// Publish never blocks on a subscriber, a subscriber which is behind only
// gets the latest reading.
func (m *Meter) Publish(r Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reading = r
	for c := range m.subs {
		select {
		case c <- r:
		default:
			select {
			case <-c:
			default:
			}
			c <- r
		}
	}
}

// Subscribe returns a channel receiving every published reading.
func (m *Meter) Subscribe() <-chan Reading {
	c := make(chan Reading, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = map[chan Reading]struct{}{}
	}
	m.subs[c] = struct{}{}
	return c
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (m *Meter) Unsubscribe(c <-chan Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subs {
		if sub == c {
			delete(m.subs, sub)
			close(sub)
			return
		}
	}
}
