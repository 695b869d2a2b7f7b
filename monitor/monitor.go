// Package monitor tracks whether the push channel is connected.
package monitor

import (
	"sync"

	"go.uber.org/zap"
)

type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Monitor holds the push-channel state and broadcasts every transition to
// its subscribers. It is advisory: nothing is gated on it.
type Monitor struct {
	logger *zap.Logger

	mu    sync.RWMutex
	state State
	subs  map[chan State]struct{}
}

// New creates a monitor in the Disconnected state.
func New(logger *zap.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		state:  Disconnected,
		subs:   make(map[chan State]struct{}),
	}
}

func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) Connected() bool {
	return m.State() == Connected
}

// Opened records a channel-open signal.
func (m *Monitor) Opened() {
	m.set(Connected)
}

// Closed records a channel-close signal.
func (m *Monitor) Closed() {
	m.set(Disconnected)
}

// Errored records a channel-error signal.
func (m *Monitor) Errored(err error) {
	m.logger.Warn("Push channel error", zap.Error(err))
	m.set(Disconnected)
}

func (m *Monitor) set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == s {
		return
	}
	m.state = s
	m.logger.Info("Push channel state changed", zap.Stringer("state", s))

	for ch := range m.subs {
		// Observers only care about the latest state: drop a stale one
		// rather than block.
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving every subsequent state change and a
// cancel func that unsubscribes and closes it.
func (m *Monitor) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	if m.subs == nil {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			if _, ok := m.subs[ch]; ok {
				delete(m.subs, ch)
				close(ch)
			}
			m.mu.Unlock()
		})
	}
	return ch, cancel
}

// Shutdown closes every subscriber channel. Later subscriptions get a
// closed channel.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}
