// Package queue keeps the last known catalog and queue snapshot and decides
// which queue changes are worth announcing.
package queue

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/chauveaul/jukebox-terminal/daemon"
)

// Snapshot is a queue ordered by position.
type Snapshot []daemon.QueueItem

// NewSnapshot copies items and orders them by position.
func NewSnapshot(items []daemon.QueueItem) Snapshot {
	s := make(Snapshot, len(items))
	copy(s, items)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Position < s[j].Position })
	return s
}

// Fingerprint serializes the whole snapshot for change detection.
func (s Snapshot) Fingerprint() string {
	if s == nil {
		s = Snapshot{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		// QueueItem only holds strings and ints.
		panic(fmt.Sprintf("queue: fingerprint: %v", err))
	}
	return string(b)
}

// Contiguous reports whether positions are exactly 1..N.
func (s Snapshot) Contiguous() bool {
	for i, item := range s {
		if item.Position != i+1 {
			return false
		}
	}
	return true
}

// Cache holds the latest catalog and snapshot. Every refresh replaces the
// previous value wholesale. Each fetch is stamped with a sequence number
// from NextSeq when issued; a response older than the one already applied
// is discarded.
type Cache struct {
	logger *zap.Logger

	seq      uint64
	songsSeq uint64
	queueSeq uint64

	songs []daemon.Song
	byID  map[string]daemon.Song
	queue Snapshot
}

func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		logger: logger,
		byID:   make(map[string]daemon.Song),
		queue:  Snapshot{},
	}
}

// NextSeq stamps a fetch about to be issued.
func (c *Cache) NextSeq() uint64 {
	c.seq++
	return c.seq
}

// ReplaceSongs installs a fetched catalog. It returns false when the
// response is stale.
func (c *Cache) ReplaceSongs(seq uint64, songs []daemon.Song) bool {
	if seq <= c.songsSeq {
		c.logger.Debug("Discarding stale catalog", zap.Uint64("seq", seq), zap.Uint64("applied", c.songsSeq))
		return false
	}
	c.songsSeq = seq
	c.songs = append([]daemon.Song(nil), songs...)
	c.byID = make(map[string]daemon.Song, len(songs))
	for _, song := range songs {
		c.byID[song.ID] = song
	}
	return true
}

// ReplaceQueue installs a fetched queue and returns it as a Snapshot. ok is
// false when the response is stale.
func (c *Cache) ReplaceQueue(seq uint64, items []daemon.QueueItem) (Snapshot, bool) {
	if seq <= c.queueSeq {
		c.logger.Debug("Discarding stale queue", zap.Uint64("seq", seq), zap.Uint64("applied", c.queueSeq))
		return nil, false
	}
	s := NewSnapshot(items)
	if !s.Contiguous() {
		c.logger.Warn("Queue positions are not contiguous", zap.Int("items", len(s)))
	}
	c.queueSeq = seq
	c.queue = s
	return s, true
}

func (c *Cache) Songs() []daemon.Song {
	return append([]daemon.Song(nil), c.songs...)
}

func (c *Cache) Song(id string) (daemon.Song, bool) {
	song, ok := c.byID[id]
	return song, ok
}

func (c *Cache) Queue() Snapshot {
	return append(Snapshot{}, c.queue...)
}

// Label renders "Title - Artist", or the raw id when the song is unknown.
func (c *Cache) Label(id string) string {
	if song, ok := c.byID[id]; ok {
		return fmt.Sprintf("%s - %s", song.Title, song.Artist)
	}
	return "Song ID: " + id
}

// Title renders the song title, or the raw id when the song is unknown.
func (c *Cache) Title(id string) string {
	if song, ok := c.byID[id]; ok {
		return song.Title
	}
	return "Song ID: " + id
}

// ItemLine renders one queue entry as "N. Title - Artist (V votes)".
func (c *Cache) ItemLine(item daemon.QueueItem) string {
	return fmt.Sprintf("%d. %s (%d votes)", item.Position, c.Label(item.SongID), item.Votes)
}

// FormatDuration renders seconds as M:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
