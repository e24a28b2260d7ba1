package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// State is the binary reachability state of the upstream API.
type State int

const (
	Available State = iota
	Unavailable
)

func (s State) String() string {
	if s == Available {
		return "available"
	}
	return "unavailable"
}

// Probe reports whether the upstream API is currently reachable.
type Probe func(ctx context.Context) bool

// DefaultProbe issues a HEAD request against url and treats any response
// as reachability; only transport failures count as unavailable.
func DefaultProbe(url string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// Monitor periodically probes the upstream API and exposes the result as
// a de-duplicated observable state. The state is optimistically Available
// until the first real reading arrives.
type Monitor struct {
	probe    Probe
	interval time.Duration

	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

// NewMonitor creates a monitor with the given probe and polling interval.
func NewMonitor(probe Probe, interval time.Duration) *Monitor {
	return &Monitor{
		probe:    probe,
		interval: interval,
		state:    Available,
		subs:     make(map[int]chan State),
	}
}

// Run polls the probe until ctx is done. It blocks and is meant to be
// started on its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.set(m.reachable(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Current returns the last observed state.
func (m *Monitor) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// States subscribes to state changes. The returned channel emits the
// current state immediately and then only on transitions; identical
// consecutive readings are suppressed. The channel is closed when ctx is
// done.
func (m *Monitor) States(ctx context.Context) <-chan State {
	updates := make(chan State, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = updates
	updates <- m.state
	m.mu.Unlock()

	out := make(chan State)
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case state := <-updates:
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (m *Monitor) reachable(ctx context.Context) State {
	if m.probe(ctx) {
		return Available
	}
	return Unavailable
}

// set records a new reading and fans out the transition to subscribers.
// Repeated identical readings produce no emission.
func (m *Monitor) set(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state == m.state {
		return
	}
	m.state = state
	for _, updates := range m.subs {
		// Keep only the latest state for slow subscribers; the stream is
		// de-duplicated, not a change log.
		select {
		case updates <- state:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- state
		}
	}
}
