// Package shell is the command interpreter. It runs parsed commands against
// the queue service, owns live mode and the push-channel bridge, and turns
// every outcome into transcript lines. All of its state is touched only from
// the Bubble Tea update loop.
package shell

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/chauveaul/jukebox-terminal/command"
	"github.com/chauveaul/jukebox-terminal/daemon"
	"github.com/chauveaul/jukebox-terminal/lyrics"
	"github.com/chauveaul/jukebox-terminal/monitor"
	"github.com/chauveaul/jukebox-terminal/queue"
	"github.com/chauveaul/jukebox-terminal/transcript"
)

const DefaultPollInterval = time.Second

// LyricsFetcher looks up lyrics for one song.
type LyricsFetcher interface {
	Lookup(ctx context.Context, title, artist string, duration int) (lyrics.Result, error)
}

type Session struct {
	ctx     context.Context
	service daemon.Service
	monitor *monitor.Monitor
	lyrics  LyricsFetcher
	logger  *zap.Logger

	cache      *queue.Cache
	reconciler *queue.Reconciler
	transcript *transcript.Transcript

	pollInterval time.Duration
	apiURL       string
	wsURL        string

	live       bool
	generation int
	history    []string

	events chan tea.Msg
	sub    *daemon.Subscription
}

type Option func(*Session)

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithEndpoints sets the URLs reported by "status".
func WithEndpoints(apiURL, wsURL string) Option {
	return func(s *Session) { s.apiURL, s.wsURL = apiURL, wsURL }
}

func WithLyrics(l LyricsFetcher) Option {
	return func(s *Session) { s.lyrics = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session. Every remote call runs under ctx; cancelling it
// stops the push bridge.
func New(ctx context.Context, service daemon.Service, mon *monitor.Monitor, opts ...Option) *Session {
	s := &Session{
		ctx:          ctx,
		service:      service,
		monitor:      mon,
		logger:       zap.NewNop(),
		pollInterval: DefaultPollInterval,
		transcript:   transcript.New(transcript.DefaultBanner()),
		events:       make(chan tea.Msg, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = queue.NewCache(s.logger)
	s.reconciler = queue.NewReconciler(s.cache)
	return s
}

func (s *Session) Transcript() *transcript.Transcript { return s.transcript }

func (s *Session) Live() bool { return s.live }

func (s *Session) APIURL() string { return s.apiURL }

// History returns the inputs executed so far, oldest first.
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

// Init loads the catalog and the queue without announcing them and opens
// the push channel.
func (s *Session) Init() tea.Cmd {
	return tea.Batch(
		s.fetchSongs(false),
		s.fetchQueue(originLoad),
		s.subscribe(),
	)
}

// Close stops the push subscription.
func (s *Session) Close() error {
	return s.sub.Close()
}

// Execute runs one input line. Blank input does nothing. Lines of local
// commands are appended immediately; remote commands return the tea.Cmd
// whose completion message, fed back through Update, appends the outcome.
func (s *Session) Execute(line string) tea.Cmd {
	cmd, ok, err := command.Parse(line)
	if !ok {
		return nil
	}

	s.history = append(s.history, cmd.Raw)
	s.transcript.Append(transcript.PlainLine("$ " + cmd.Raw))

	var verr *command.ValidationError
	if errors.As(err, &verr) {
		s.logger.Debug("Rejected command", zap.String("verb", verr.Verb), zap.String("reason", verr.Message))
		s.finish(transcript.ErrorLine("❌ " + verr.Message))
		return nil
	}

	switch cmd.Kind {
	case command.Help:
		s.finish(helpLines()...)
	case command.Songs:
		return s.fetchSongs(true)
	case command.ViewQueue:
		return s.fetchQueue(originView)
	case command.Enqueue, command.Upvote, command.Downvote:
		return s.mutate(cmd.Kind, cmd.SongID())
	case command.Live:
		return s.setLive(cmd.LiveMode())
	case command.Clear:
		s.transcript.Clear()
		s.finish()
	case command.WhoAmI:
		s.finish(whoamiLines()...)
	case command.Lyrics:
		return s.lookupLyrics(cmd.SongID())
	case command.Status:
		s.finish(s.statusLines()...)
	case command.History:
		s.finish(historyLines(s.history)...)
	default:
		s.finish(notFoundLine(cmd.Verb))
	}
	return nil
}

// Update applies a message produced by one of the session's commands. It
// returns nil for messages that belong to someone else.
func (s *Session) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case songsMsg:
		s.onSongs(msg)
	case queueMsg:
		s.onQueue(msg)
	case mutationMsg:
		return s.onMutation(msg)
	case lyricsMsg:
		s.onLyrics(msg)
	case pollTickMsg:
		return s.onPollTick(msg)
	case subscribedMsg:
		return s.onSubscribed(msg)
	case pushEventMsg:
		s.transcript.Append(s.reconciler.EventLines(msg.event)...)
		return tea.Batch(s.fetchQueue(originPush), s.listen())
	case channelOpenMsg:
		s.monitor.Opened()
		return s.listen()
	case channelCloseMsg:
		s.monitor.Closed()
		return s.listen()
	case channelErrorMsg:
		s.monitor.Errored(msg.err)
		s.finish(transcript.ErrorLine("❌ Push channel error: " + msg.err.Error()))
		return s.listen()
	}
	return nil
}

// finish appends lines followed by the spacer that closes every command.
func (s *Session) finish(lines ...transcript.Line) {
	s.transcript.Append(lines...)
	s.transcript.Append(transcript.Blank())
}

func (s *Session) setLive(mode command.LiveMode) tea.Cmd {
	switch mode {
	case command.LiveOn:
		s.live = true
		s.generation++
		s.reconciler.Prime(s.cache.Queue())
		s.logger.Info("Live mode enabled", zap.Duration("interval", s.pollInterval))
		s.finish(
			transcript.SuccessLine("🔴 Live mode ON - Queue updates will appear automatically"),
			transcript.PlainLine("   Polling every "+formatInterval(s.pollInterval)+" for real-time updates"),
		)
		return s.schedulePoll()
	case command.LiveOff:
		s.live = false
		s.generation++
		s.logger.Info("Live mode disabled")
		s.finish(transcript.InfoLine("⚫ Live mode OFF - Manual refresh required"))
	default:
		s.finish(liveStatusLines(s.live, s.pollInterval)...)
	}
	return nil
}

func (s *Session) schedulePoll() tea.Cmd {
	gen := s.generation
	return tea.Tick(s.pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{generation: gen}
	})
}

// onPollTick ignores ticks scheduled before the last live toggle.
func (s *Session) onPollTick(msg pollTickMsg) tea.Cmd {
	if !s.live || msg.generation != s.generation {
		return nil
	}
	return tea.Batch(s.fetchQueue(originPoll), s.schedulePoll())
}

func (s *Session) onSongs(msg songsMsg) {
	if msg.err != nil {
		s.logger.Warn("Failed to fetch songs", zap.Error(msg.err))
		s.finish(transcript.ErrorLine("❌ Error loading songs: " + msg.err.Error()))
		return
	}
	s.cache.ReplaceSongs(msg.seq, msg.songs)
	if msg.render {
		s.finish(songLines(s.cache.Songs())...)
	}
}

func (s *Session) onQueue(msg queueMsg) {
	if msg.err != nil {
		switch msg.origin {
		case originPoll, originPush, originRefetch:
			s.logger.Warn("Background queue refresh failed", zap.Stringer("origin", msg.origin), zap.Error(msg.err))
		default:
			s.finish(transcript.ErrorLine("❌ Error loading queue: " + msg.err.Error()))
		}
		return
	}

	// Views and re-fetches leave the reconciler alone, so a change they
	// reveal is still announced by the next live fetch.
	snapshot, fresh := s.cache.ReplaceQueue(msg.seq, msg.items)
	switch msg.origin {
	case originView:
		// A stale response still gets an answer: the newer cached queue.
		s.finish(queueLines(s.cache, s.cache.Queue())...)
	case originLoad:
		if fresh {
			s.reconciler.Prime(snapshot)
		}
	case originPoll, originPush:
		if fresh {
			s.transcript.Append(s.reconciler.Reconcile(snapshot)...)
		}
	}
}

func (s *Session) onMutation(msg mutationMsg) tea.Cmd {
	if msg.err != nil {
		s.logger.Warn("Mutation failed", zap.String("song", msg.songID), zap.Error(msg.err))
		s.finish(transcript.ErrorLine(mutationErrorPrefix(msg.kind) + msg.err.Error()))
		return nil
	}
	s.finish(mutationLines(s.cache, msg.kind, msg.songID, msg.item)...)
	return s.fetchQueue(originRefetch)
}

func (s *Session) lookupLyrics(id string) tea.Cmd {
	song, ok := s.cache.Song(id)
	if !ok {
		s.finish(transcript.ErrorLine(`❌ Unknown song: ` + id + `. Try "songs" to list the catalog`))
		return nil
	}
	if s.lyrics == nil {
		s.finish(transcript.ErrorLine("❌ Lyrics lookup is not configured"))
		return nil
	}
	return s.fetchLyrics(song)
}

func (s *Session) onLyrics(msg lyricsMsg) {
	if msg.err != nil {
		s.finish(transcript.ErrorLine("❌ Error fetching lyrics: " + msg.err.Error()))
		return
	}
	s.finish(lyricsLines(msg.song, msg.result)...)
}

func (s *Session) onSubscribed(msg subscribedMsg) tea.Cmd {
	if msg.err != nil {
		s.logger.Error("Failed to open push channel", zap.Error(msg.err))
		s.monitor.Errored(msg.err)
		s.finish(transcript.ErrorLine("❌ Push channel error: " + msg.err.Error()))
		return nil
	}
	s.sub = msg.sub
	return s.listen()
}
