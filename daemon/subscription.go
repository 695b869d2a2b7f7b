package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// graphql-ws protocol, see https://github.com/enisdenjo/graphql-ws/blob/master/PROTOCOL.md
const (
	subprotocol = "graphql-transport-ws"

	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
	msgPing           = "ping"
	msgPong           = "pong"

	ackTimeout = 10 * time.Second
)

const queueUpdatedSubscription = `subscription QueueUpdated {
  queueUpdated { type songId user timestamp }
}`

var errSubscriptionComplete = errors.New("subscription completed by server")

// Handlers are the lifecycle callbacks of a push subscription. They are
// called from the subscription goroutine; nil handlers are skipped.
type Handlers struct {
	OnEvent func(QueueUpdateEvent)
	OnError func(error)
	OnOpen  func()
	OnClose func()
}

func (h Handlers) event(ev QueueUpdateEvent) {
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Handlers) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handlers) close() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

// RetryPolicy controls reconnection of the push channel. Attempts counts
// consecutive failed connections; it resets once a connection is acknowledged.
type RetryPolicy struct {
	Attempts    int
	Backoff     time.Duration
	ShouldRetry func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:    5,
		Backoff:     2 * time.Second,
		ShouldRetry: AlwaysRetry,
	}
}

func AlwaysRetry(error) bool { return true }

func (p RetryPolicy) retry(failures int, err error) bool {
	if failures > p.Attempts {
		return false
	}
	if p.ShouldRetry == nil {
		return true
	}
	return p.ShouldRetry(err)
}

// ErrRetriesExhausted is reported once the push channel stops reconnecting.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ChannelError reports a failure of the push channel.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("push channel: %v", e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Subscription is the handle of a running push subscription.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the subscription and waits for its goroutine to exit.
// It is safe on a nil or zero Subscription.
func (s *Subscription) Close() error {
	if s == nil || s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}

// Done is closed when the subscription gave up or was closed.
func (s *Subscription) Done() <-chan struct{} {
	if s == nil || s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscribe opens the queue event stream in the background. Connection
// failures are retried according to the client's RetryPolicy.
func (d *Daemon) Subscribe(ctx context.Context, h Handlers) (*Subscription, error) {
	if d.wsURL == "" {
		return nil, &ChannelError{Err: errors.New("no streaming endpoint configured")}
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{cancel: cancel, done: make(chan struct{})}
	go d.run(subCtx, h, s.done)
	return s, nil
}

func (d *Daemon) run(ctx context.Context, h Handlers, done chan struct{}) {
	defer close(done)

	failures := 0
	for {
		acked, err := d.stream(ctx, h)
		if ctx.Err() != nil {
			return
		}
		if acked {
			failures = 0
		}
		failures++

		h.error(&ChannelError{Err: err})
		if !d.retry.retry(failures, err) {
			d.logger.Warn("Push channel giving up",
				zap.Int("failures", failures),
				zap.Error(err))
			h.error(&ChannelError{Err: fmt.Errorf("%w after %d failed attempts", ErrRetriesExhausted, failures)})
			return
		}

		d.logger.Info("Push channel reconnecting",
			zap.Int("attempt", failures),
			zap.Duration("backoff", d.retry.Backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retry.Backoff):
		}
	}
}

// stream runs one connection until it fails. acked reports whether the
// server acknowledged the connection.
func (d *Daemon) stream(ctx context.Context, h Handlers) (acked bool, err error) {
	conn, _, err := d.dialer.DialContext(ctx, d.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to dial %s: %w", d.wsURL, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	if err := conn.WriteJSON(wsMessage{Type: msgConnectionInit, Payload: json.RawMessage(`{}`)}); err != nil {
		return false, fmt.Errorf("failed to send connection_init: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(ackTimeout))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return false, fmt.Errorf("waiting for connection_ack: %w", err)
		}
		if msg.Type == msgConnectionAck {
			break
		}
		if msg.Type == msgPing {
			if err := conn.WriteJSON(wsMessage{Type: msgPong}); err != nil {
				return false, fmt.Errorf("failed to send pong: %w", err)
			}
		}
	}
	conn.SetReadDeadline(time.Time{})

	h.open()
	defer h.close()

	id := uuid.NewString()
	payload, err := json.Marshal(map[string]any{
		"operationName": "QueueUpdated",
		"query":         queueUpdatedSubscription,
	})
	if err != nil {
		return true, fmt.Errorf("failed to encode subscription: %w", err)
	}
	if err := conn.WriteJSON(wsMessage{ID: id, Type: msgSubscribe, Payload: payload}); err != nil {
		return true, fmt.Errorf("failed to subscribe: %w", err)
	}
	d.logger.Info("Push channel subscribed", zap.String("url", d.wsURL), zap.String("id", id))

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, fmt.Errorf("read failed: %w", err)
		}

		switch msg.Type {
		case msgNext:
			var next struct {
				Data struct {
					QueueUpdated *QueueUpdateEvent `json:"queueUpdated"`
				} `json:"data"`
			}
			if err := json.Unmarshal(msg.Payload, &next); err != nil {
				d.logger.Warn("Dropping malformed queue event", zap.Error(err))
				continue
			}
			if next.Data.QueueUpdated == nil {
				continue
			}
			h.event(*next.Data.QueueUpdated)
		case msgError:
			return true, fmt.Errorf("subscription error: %s", string(msg.Payload))
		case msgComplete:
			return true, errSubscriptionComplete
		case msgPing:
			if err := conn.WriteJSON(wsMessage{Type: msgPong}); err != nil {
				return true, fmt.Errorf("failed to send pong: %w", err)
			}
		case msgPong:
		default:
			d.logger.Debug("Ignoring websocket message", zap.String("type", msg.Type))
		}
	}
}
