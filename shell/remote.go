package shell

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/chauveaul/jukebox-terminal/command"
	"github.com/chauveaul/jukebox-terminal/daemon"
	"github.com/chauveaul/jukebox-terminal/lyrics"
)

// origin says why a queue fetch was issued, which decides whether its
// result is shown, primed or reconciled.
type origin int

const (
	originLoad origin = iota
	originView
	originRefetch
	originPoll
	originPush
)

func (o origin) String() string {
	switch o {
	case originLoad:
		return "load"
	case originView:
		return "view"
	case originRefetch:
		return "refetch"
	case originPoll:
		return "poll"
	case originPush:
		return "push"
	default:
		return "unknown"
	}
}

type songsMsg struct {
	seq    uint64
	songs  []daemon.Song
	render bool
	err    error
}

type queueMsg struct {
	seq    uint64
	origin origin
	items  []daemon.QueueItem
	err    error
}

type mutationMsg struct {
	kind   command.Kind
	songID string
	item   daemon.QueueItem
	err    error
}

type lyricsMsg struct {
	song   daemon.Song
	result lyrics.Result
	err    error
}

type pollTickMsg struct {
	generation int
}

type subscribedMsg struct {
	sub *daemon.Subscription
	err error
}

type pushEventMsg struct {
	event daemon.QueueUpdateEvent
}

type channelOpenMsg struct{}

type channelCloseMsg struct{}

type channelErrorMsg struct {
	err error
}

// guard runs a remote call and turns a panic into an error, so a broken
// call can only ever produce an error line.
func guard[T any](call func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return call()
}

// fetchSongs stamps the fetch on the update loop, when it is issued, so a
// slow response can be recognized as stale when it finally arrives.
func (s *Session) fetchSongs(render bool) tea.Cmd {
	seq := s.cache.NextSeq()
	return func() tea.Msg {
		songs, err := guard(func() ([]daemon.Song, error) { return s.service.Songs(s.ctx) })
		return songsMsg{seq: seq, songs: songs, render: render, err: err}
	}
}

func (s *Session) fetchQueue(o origin) tea.Cmd {
	seq := s.cache.NextSeq()
	return func() tea.Msg {
		items, err := guard(func() ([]daemon.QueueItem, error) { return s.service.Queue(s.ctx) })
		return queueMsg{seq: seq, origin: o, items: items, err: err}
	}
}

func (s *Session) mutate(kind command.Kind, songID string) tea.Cmd {
	var call func() (daemon.QueueItem, error)
	switch kind {
	case command.Enqueue:
		call = func() (daemon.QueueItem, error) { return s.service.Enqueue(s.ctx, songID) }
	case command.Upvote:
		call = func() (daemon.QueueItem, error) { return s.service.Upvote(s.ctx, songID) }
	case command.Downvote:
		call = func() (daemon.QueueItem, error) { return s.service.Downvote(s.ctx, songID) }
	default:
		return nil
	}
	return func() tea.Msg {
		item, err := guard(call)
		return mutationMsg{kind: kind, songID: songID, item: item, err: err}
	}
}

func (s *Session) fetchLyrics(song daemon.Song) tea.Cmd {
	return func() tea.Msg {
		res, err := guard(func() (lyrics.Result, error) {
			return s.lyrics.Lookup(s.ctx, song.Title, song.Artist, song.Duration)
		})
		return lyricsMsg{song: song, result: res, err: err}
	}
}

// subscribe opens the push channel. Its callbacks run on the subscription
// goroutine, so they only forward messages into the events channel.
func (s *Session) subscribe() tea.Cmd {
	return func() tea.Msg {
		sub, err := s.service.Subscribe(s.ctx, daemon.Handlers{
			OnEvent: func(ev daemon.QueueUpdateEvent) { s.forward(pushEventMsg{event: ev}) },
			OnError: func(err error) { s.forward(channelErrorMsg{err: err}) },
			OnOpen:  func() { s.forward(channelOpenMsg{}) },
			OnClose: func() { s.forward(channelCloseMsg{}) },
		})
		return subscribedMsg{sub: sub, err: err}
	}
}

func (s *Session) forward(msg tea.Msg) {
	select {
	case s.events <- msg:
	case <-s.ctx.Done():
		s.logger.Debug("Dropping push message after shutdown", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// listen waits for the next push message. Every push message handled by
// Update re-arms it, so exactly one listener is pending at a time.
func (s *Session) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.events:
			return msg
		case <-s.ctx.Done():
			return nil
		}
	}
}
