package monitor

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestMonitor_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		signals []func(*Monitor)
		want    State
	}{
		{
			name: "initial state",
			want: Disconnected,
		},
		{
			name:    "open",
			signals: []func(*Monitor){(*Monitor).Opened},
			want:    Connected,
		},
		{
			name:    "open then close",
			signals: []func(*Monitor){(*Monitor).Opened, (*Monitor).Closed},
			want:    Disconnected,
		},
		{
			name: "open then error",
			signals: []func(*Monitor){(*Monitor).Opened, func(m *Monitor) {
				m.Errored(errors.New("boom"))
			}},
			want: Disconnected,
		},
		{
			name:    "reopen after close",
			signals: []func(*Monitor){(*Monitor).Opened, (*Monitor).Closed, (*Monitor).Opened},
			want:    Connected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(zap.NewNop())
			for _, signal := range tt.signals {
				signal(m)
			}
			if got := m.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
			if got := m.Connected(); got != (tt.want == Connected) {
				t.Errorf("Connected() = %v", got)
			}
		})
	}
}

func TestMonitor_Subscribe(t *testing.T) {
	m := New(zap.NewNop())
	ch, cancel := m.Subscribe()

	m.Opened()
	if got := <-ch; got != Connected {
		t.Fatalf("first notification = %v, want connected", got)
	}

	m.Errored(errors.New("reset by peer"))
	if got := <-ch; got != Disconnected {
		t.Fatalf("second notification = %v, want disconnected", got)
	}

	// Repeating the current state is not a transition.
	m.Closed()
	select {
	case got := <-ch:
		t.Fatalf("unexpected notification %v", got)
	default:
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	m.Opened()
	if !m.Connected() {
		t.Error("state changes must not depend on subscribers")
	}
}

func TestMonitor_SlowSubscriberSeesLatest(t *testing.T) {
	m := New(zap.NewNop())
	ch, cancel := m.Subscribe()
	defer cancel()

	m.Opened()
	m.Closed()
	m.Opened()

	if got := <-ch; got != Connected {
		t.Errorf("buffered notification = %v, want latest (connected)", got)
	}
}

func TestMonitor_Shutdown(t *testing.T) {
	m := New(zap.NewNop())
	a, _ := m.Subscribe()
	b, cancelB := m.Subscribe()

	m.Shutdown()
	cancelB()

	for _, ch := range []<-chan State{a, b} {
		if _, ok := <-ch; ok {
			t.Error("subscriber channel should be closed by Shutdown")
		}
	}

	late, _ := m.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribing after Shutdown should yield a closed channel")
	}

	m.Opened()
	if !m.Connected() {
		t.Error("Shutdown must not freeze the state")
	}
}
