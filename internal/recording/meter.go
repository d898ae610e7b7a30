package recording

import "sync"

// Meter fans input levels out to subscribers. It is kept apart from the
// session snapshot so level updates at the sampling rate do not have to go
// through the session state.
type Meter struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(db float64)
}

// NewMeter creates a Meter without subscribers.
func NewMeter() *Meter {
	return &Meter{listeners: make(map[int]func(float64))}
}

// Subscribe registers fn for every published level and returns a function
// that removes it again. fn runs on the publishing goroutine and must not
// block.
func (m *Meter) Subscribe(fn func(db float64)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.next
	m.next++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Publish delivers db to every subscriber.
func (m *Meter) Publish(db float64) {
	m.mu.Lock()
	fns := make([]func(float64), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(db)
	}
}

// Subscribers returns the number of registered listeners.
func (m *Meter) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}
