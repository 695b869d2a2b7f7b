// Package daemontest provides an in-process queue service speaking the same
// GraphQL and graphql-ws protocols as the real one.
package daemontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chauveaul/jukebox-terminal/daemon"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{"graphql-transport-ws"},
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Server is a fake queue service. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	songs      []daemon.Song
	queue      []daemon.QueueItem
	calls      map[string]int
	failures   map[string]string
	available  bool
	connects   int
	subs       map[*subscriber]string
	subscribed chan struct{}
}

// New starts a fake service with the given catalog and an empty queue.
func New(songs ...daemon.Song) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		songs:      songs,
		calls:      make(map[string]int),
		failures:   make(map[string]string),
		available:  true,
		subs:       make(map[*subscriber]string),
		subscribed: make(chan struct{}, 16),
	}

	router := gin.New()
	router.POST("/graphql", s.handleGraphQL)
	router.GET("/graphql", s.handleWebSocket)
	s.Server = httptest.NewServer(router)
	return s
}

func (s *Server) APIURL() string { return s.URL + "/graphql" }

func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/graphql"
}

// Calls returns how many times the operation (e.g. "GetQueue") was requested.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Connects returns how many websocket connections were attempted.
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Fail makes the next request for op answer with a GraphQL error.
func (s *Server) Fail(op, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = message
}

// SetAvailable toggles whether websocket upgrades are accepted.
func (s *Server) SetAvailable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = ok
}

// Subscribed delivers one value per accepted subscription.
func (s *Server) Subscribed() <-chan struct{} { return s.subscribed }

func (s *Server) Queue() []daemon.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]daemon.QueueItem(nil), s.queue...)
}

// Publish sends ev to every subscriber.
func (s *Server) Publish(ev daemon.QueueUpdateEvent) {
	payload, _ := json.Marshal(map[string]any{
		"data": map[string]any{"queueUpdated": ev},
	})

	s.mu.Lock()
	subs := make(map[*subscriber]string, len(s.subs))
	for sub, id := range s.subs {
		subs[sub] = id
	}
	s.mu.Unlock()

	for sub, id := range subs {
		_ = sub.send(map[string]any{"id": id, "type": "next", "payload": json.RawMessage(payload)})
	}
}

// DropSubscribers closes every websocket connection.
func (s *Server) DropSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.conn.Close()
		delete(s.subs, sub)
	}
}

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

func (s *Server) handleGraphQL(c *gin.Context) {
	var req graphqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"message": err.Error()}}})
		return
	}

	s.mu.Lock()
	s.calls[req.OperationName]++
	if msg, ok := s.failures[req.OperationName]; ok {
		delete(s.failures, req.OperationName)
		s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"data": nil, "errors": []gin.H{{"message": msg}}})
		return
	}

	songID, _ := req.Variables["songId"].(string)
	var (
		data  gin.H
		event *daemon.QueueUpdateEvent
		err   error
	)
	switch req.OperationName {
	case "GetSongs":
		data = gin.H{"songs": append([]daemon.Song{}, s.songs...)}
	case "GetQueue":
		data = gin.H{"queue": append([]daemon.QueueItem{}, s.queue...)}
	case "QueueSong":
		var item daemon.QueueItem
		item, err = s.enqueueLocked(songID)
		data = gin.H{"queueSong": item}
		event = &daemon.QueueUpdateEvent{Type: daemon.EventAdded, SongID: songID}
	case "UpvoteSong":
		var item daemon.QueueItem
		item, err = s.voteLocked(songID, 1)
		data = gin.H{"upvoteSong": item}
		event = &daemon.QueueUpdateEvent{Type: daemon.EventUpvoted, SongID: songID}
	case "DownvoteSong":
		var item daemon.QueueItem
		item, err = s.voteLocked(songID, -1)
		data = gin.H{"downvoteSong": item}
		event = &daemon.QueueUpdateEvent{Type: daemon.EventDownvoted, SongID: songID}
	default:
		err = fmt.Errorf("unknown operation %q", req.OperationName)
	}
	s.mu.Unlock()

	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": nil, "errors": []gin.H{{"message": err.Error()}}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})

	if event != nil {
		event.User = "daemontest"
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
		s.Publish(*event)
	}
}

func (s *Server) enqueueLocked(songID string) (daemon.QueueItem, error) {
	known := false
	for _, song := range s.songs {
		if song.ID == songID {
			known = true
			break
		}
	}
	if !known {
		return daemon.QueueItem{}, fmt.Errorf("Song %s not found", songID)
	}
	for _, item := range s.queue {
		if item.SongID == songID {
			return daemon.QueueItem{}, fmt.Errorf("Song %s is already in the queue", songID)
		}
	}

	item := daemon.QueueItem{
		SongID:   songID,
		Position: len(s.queue) + 1,
		Votes:    0,
		QueuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.queue = append(s.queue, item)
	return item, nil
}

func (s *Server) voteLocked(songID string, delta int) (daemon.QueueItem, error) {
	idx := -1
	for i, item := range s.queue {
		if item.SongID == songID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return daemon.QueueItem{}, fmt.Errorf("Song %s is not in the queue", songID)
	}
	s.queue[idx].Votes += delta

	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].Votes > s.queue[j].Votes
	})
	for i := range s.queue {
		s.queue[i].Position = i + 1
	}
	for _, item := range s.queue {
		if item.SongID == songID {
			return item, nil
		}
	}
	return daemon.QueueItem{}, fmt.Errorf("Song %s vanished", songID)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.mu.Lock()
	s.connects++
	available := s.available
	s.mu.Unlock()

	if !available {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sub := &subscriber{conn: conn}
	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "connection_init":
			if err := sub.send(gin.H{"type": "connection_ack"}); err != nil {
				return
			}
		case "subscribe":
			s.mu.Lock()
			s.subs[sub] = msg.ID
			s.mu.Unlock()
			select {
			case s.subscribed <- struct{}{}:
			default:
			}
		case "ping":
			if err := sub.send(gin.H{"type": "pong"}); err != nil {
				return
			}
		case "complete":
			return
		}
	}
}
