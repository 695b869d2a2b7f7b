// Package daemon talks to the jukebox queue service (the "mixer console"):
// GraphQL queries and mutations over HTTP, queue events over a websocket.
package daemon

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks . Service

// Service is everything the terminal needs from the queue service.
type Service interface {
	Songs(ctx context.Context) ([]Song, error)
	Queue(ctx context.Context) ([]QueueItem, error)
	Enqueue(ctx context.Context, songID string) (QueueItem, error)
	Upvote(ctx context.Context, songID string) (QueueItem, error)
	Downvote(ctx context.Context, songID string) (QueueItem, error)
	Subscribe(ctx context.Context, h Handlers) (*Subscription, error)
}

type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"` // seconds
}

type QueueItem struct {
	SongID   string `json:"songId"`
	Position int    `json:"position"`
	Votes    int    `json:"votes"`
	QueuedAt string `json:"queuedAt,omitempty"`
}

type EventType string

const (
	EventAdded     EventType = "added"
	EventUpvoted   EventType = "upvoted"
	EventDownvoted EventType = "downvoted"
	EventRemoved   EventType = "removed"
)

// QueueUpdateEvent is one push notification. It is never stored.
type QueueUpdateEvent struct {
	Type      EventType `json:"type"`
	SongID    string    `json:"songId,omitempty"`
	User      string    `json:"user,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// Time parses the event timestamp, which the service sends either as
// RFC 3339 or as epoch milliseconds.
func (e QueueUpdateEvent) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(e.Timestamp, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

// Daemon is the Service implementation backed by the real queue service.
type Daemon struct {
	apiURL string
	wsURL  string
	http   *http.Client
	dialer *websocket.Dialer
	retry  RetryPolicy
	logger *zap.Logger
}

type Option func(*Daemon)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Daemon) { d.http = c }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Daemon) { d.retry = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// New creates a client for the request endpoint apiURL and the streaming
// endpoint wsURL.
func New(apiURL, wsURL string, opts ...Option) *Daemon {
	d := &Daemon{
		apiURL: apiURL,
		wsURL:  wsURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{subprotocol},
		},
		retry:  DefaultRetryPolicy(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Daemon) APIURL() string { return d.apiURL }

func (d *Daemon) WSURL() string { return d.wsURL }

var _ Service = (*Daemon)(nil)
