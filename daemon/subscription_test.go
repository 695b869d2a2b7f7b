package daemon_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chauveaul/jukebox-terminal/daemon"
	"github.com/chauveaul/jukebox-terminal/daemon/daemontest"
)

// recorder collects subscription callbacks in the order they happened.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	events []daemon.QueueUpdateEvent
	errs   []error
	notify chan string
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan string, 64)}
}

func (r *recorder) handlers() daemon.Handlers {
	return daemon.Handlers{
		OnEvent: func(ev daemon.QueueUpdateEvent) {
			r.mu.Lock()
			r.calls = append(r.calls, "event")
			r.events = append(r.events, ev)
			r.mu.Unlock()
			r.notify <- "event"
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.calls = append(r.calls, "error")
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.notify <- "error"
		},
		OnOpen: func() {
			r.mu.Lock()
			r.calls = append(r.calls, "open")
			r.mu.Unlock()
			r.notify <- "open"
		},
		OnClose: func() {
			r.mu.Lock()
			r.calls = append(r.calls, "close")
			r.mu.Unlock()
			r.notify <- "close"
		},
	}
}

func (r *recorder) waitFor(t *testing.T, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-r.notify:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q callback", want)
		}
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func waitSubscribed(t *testing.T, srv *daemontest.Server) {
	t.Helper()
	select {
	case <-srv.Subscribed():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the subscription to reach the server")
	}
}

func TestDaemon_SubscribeDeliversEvents(t *testing.T) {
	srv := daemontest.New(catalog...)
	defer srv.Close()
	d := daemon.New(srv.APIURL(), srv.WSURL())
	rec := newRecorder()

	sub, err := d.Subscribe(context.Background(), rec.handlers())
	if err != nil {
		t.Fatalf("Daemon.Subscribe() error = %v", err)
	}
	rec.waitFor(t, "open")
	waitSubscribed(t, srv)

	srv.Publish(daemon.QueueUpdateEvent{Type: daemon.EventUpvoted, SongID: "s1", User: "bob", Timestamp: "1709296200000"})
	rec.waitFor(t, "event")

	if err := sub.Close(); err != nil {
		t.Fatalf("Subscription.Close() error = %v", err)
	}

	calls := rec.snapshot()
	if len(calls) < 3 || calls[0] != "open" || calls[1] != "event" || calls[len(calls)-1] != "close" {
		t.Errorf("callbacks = %v, want open, event, ..., close", calls)
	}
	rec.mu.Lock()
	ev := rec.events[0]
	rec.mu.Unlock()
	if ev.Type != daemon.EventUpvoted || ev.SongID != "s1" || ev.User != "bob" {
		t.Errorf("event = %+v", ev)
	}

	select {
	case <-sub.Done():
	default:
		t.Error("Done() should be closed after Close()")
	}
}

func TestDaemon_SubscribeReconnects(t *testing.T) {
	srv := daemontest.New(catalog...)
	defer srv.Close()
	d := daemon.New(srv.APIURL(), srv.WSURL(), daemon.WithRetryPolicy(daemon.RetryPolicy{
		Attempts:    3,
		Backoff:     10 * time.Millisecond,
		ShouldRetry: daemon.AlwaysRetry,
	}))
	rec := newRecorder()

	sub, err := d.Subscribe(context.Background(), rec.handlers())
	if err != nil {
		t.Fatalf("Daemon.Subscribe() error = %v", err)
	}
	defer sub.Close()

	rec.waitFor(t, "open")
	waitSubscribed(t, srv)
	srv.DropSubscribers()

	rec.waitFor(t, "close")
	rec.waitFor(t, "error")
	rec.waitFor(t, "open")

	rec.mu.Lock()
	chErr := rec.errs[0]
	rec.mu.Unlock()
	var channelErr *daemon.ChannelError
	if !errors.As(chErr, &channelErr) {
		t.Errorf("OnError got %T, want *daemon.ChannelError", chErr)
	}
	if got := srv.Connects(); got < 2 {
		t.Errorf("server saw %d connections, want at least 2", got)
	}
}

func TestDaemon_SubscribeGivesUp(t *testing.T) {
	tests := []struct {
		name         string
		policy       daemon.RetryPolicy
		wantConnects int
	}{
		{
			name:         "retries the configured number of times",
			policy:       daemon.RetryPolicy{Attempts: 2, Backoff: time.Millisecond, ShouldRetry: daemon.AlwaysRetry},
			wantConnects: 3,
		},
		{
			name:         "zero attempts never retries",
			policy:       daemon.RetryPolicy{Attempts: 0, Backoff: time.Millisecond},
			wantConnects: 1,
		},
		{
			name: "predicate refuses retry",
			policy: daemon.RetryPolicy{Attempts: 5, Backoff: time.Millisecond, ShouldRetry: func(error) bool {
				return false
			}},
			wantConnects: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := daemontest.New(catalog...)
			defer srv.Close()
			srv.SetAvailable(false)

			d := daemon.New(srv.APIURL(), srv.WSURL(), daemon.WithRetryPolicy(tt.policy))
			rec := newRecorder()
			sub, err := d.Subscribe(context.Background(), rec.handlers())
			if err != nil {
				t.Fatalf("Daemon.Subscribe() error = %v", err)
			}

			select {
			case <-sub.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("subscription never gave up")
			}

			if got := srv.Connects(); got != tt.wantConnects {
				t.Errorf("connects = %d, want %d", got, tt.wantConnects)
			}
			for _, c := range rec.snapshot() {
				if c == "open" {
					t.Error("OnOpen called although no connection was accepted")
				}
			}

			rec.mu.Lock()
			errs := append([]error(nil), rec.errs...)
			rec.mu.Unlock()
			if len(errs) != tt.wantConnects+1 {
				t.Fatalf("OnError called %d times, want %d", len(errs), tt.wantConnects+1)
			}
			if last := errs[len(errs)-1]; !errors.Is(last, daemon.ErrRetriesExhausted) {
				t.Errorf("last error = %v, want ErrRetriesExhausted", last)
			}
			for _, err := range errs[:len(errs)-1] {
				if errors.Is(err, daemon.ErrRetriesExhausted) {
					t.Errorf("error %v reported exhaustion before giving up", err)
				}
			}
		})
	}
}

func TestDaemon_SubscribeWithoutEndpoint(t *testing.T) {
	d := daemon.New("http://localhost:1/graphql", "")
	if _, err := d.Subscribe(context.Background(), daemon.Handlers{}); err == nil {
		t.Error("Daemon.Subscribe() without a streaming endpoint should fail")
	}
}

func TestSubscription_CloseNil(t *testing.T) {
	var sub *daemon.Subscription
	if err := sub.Close(); err != nil {
		t.Errorf("nil Subscription.Close() = %v", err)
	}
	select {
	case <-sub.Done():
	default:
		t.Error("nil Subscription.Done() should be closed")
	}
}
