package shell

import (
	"fmt"
	"time"

	"github.com/chauveaul/jukebox-terminal/command"
	"github.com/chauveaul/jukebox-terminal/daemon"
	"github.com/chauveaul/jukebox-terminal/lyrics"
	"github.com/chauveaul/jukebox-terminal/queue"
	"github.com/chauveaul/jukebox-terminal/transcript"
)

var helpText = []string{
	"  help              - Show this help message",
	"  ls songs          - List all available songs",
	"  view queue        - Show current queue",
	"  queue <id>        - Add song to queue by ID",
	"  upvote <id>       - Upvote a song in queue",
	"  downvote <id>     - Downvote a song in queue",
	"  live on           - Enable live queue updates",
	"  live off          - Disable live queue updates",
	"  live status       - Show live mode status",
	"  lyrics <id>       - Show the lyrics of a song",
	"  status            - Show connection status",
	"  history           - Show commands typed so far",
	"  clear             - Clear terminal",
	"  whoami            - Show current user info",
}

func helpLines() []transcript.Line {
	lines := []transcript.Line{transcript.InfoLine("🎮 Available Commands:")}
	for _, text := range helpText {
		lines = append(lines, transcript.PlainLine(text))
	}
	return lines
}

func whoamiLines() []transcript.Line {
	return []transcript.Line{
		transcript.InfoLine("👤 User: anonymous nerd"),
		transcript.PlainLine("🎯 Role: jukebox enthusiast"),
		transcript.PlainLine("🚀 Status: ready to rock!"),
	}
}

func notFoundLine(verb string) transcript.Line {
	return transcript.ErrorLine(fmt.Sprintf(`❌ Command not found: %s. Type "help" for available commands.`, verb))
}

func liveStatusLines(live bool, interval time.Duration) []transcript.Line {
	if !live {
		return []transcript.Line{transcript.InfoLine("📡 Live mode: ⚫ OFF")}
	}
	return []transcript.Line{
		transcript.InfoLine("📡 Live mode: 🔴 ON"),
		transcript.PlainLine("   Auto-refreshing queue every " + formatInterval(interval)),
	}
}

// formatInterval renders whole seconds as "1 second" / "N seconds".
func formatInterval(d time.Duration) string {
	if d <= 0 || d%time.Second != 0 {
		return d.String()
	}
	if n := int(d / time.Second); n != 1 {
		return fmt.Sprintf("%d seconds", n)
	}
	return "1 second"
}

func songLines(songs []daemon.Song) []transcript.Line {
	if len(songs) == 0 {
		return []transcript.Line{transcript.ErrorLine("❌ No songs available")}
	}
	lines := []transcript.Line{transcript.SuccessLine("🎵 Available Songs:"), transcript.Blank()}
	for _, song := range songs {
		lines = append(lines, transcript.PlainLine(fmt.Sprintf("[%s] %s - %s (%s)",
			song.ID, song.Title, song.Artist, queue.FormatDuration(song.Duration))))
	}
	return append(lines,
		transcript.Blank(),
		transcript.PlainLine(fmt.Sprintf("Total: %d songs available", len(songs))),
	)
}

func queueLines(cache *queue.Cache, s queue.Snapshot) []transcript.Line {
	if len(s) == 0 {
		return []transcript.Line{transcript.InfoLine("📭 Queue is empty")}
	}
	lines := []transcript.Line{transcript.SuccessLine("🎛️ Current Queue:"), transcript.Blank()}
	for _, item := range s {
		lines = append(lines, transcript.PlainLine(cache.ItemLine(item)))
	}
	return append(lines,
		transcript.Blank(),
		transcript.PlainLine(fmt.Sprintf("Total: %d songs in queue", len(s))),
	)
}

func mutationErrorPrefix(kind command.Kind) string {
	switch kind {
	case command.Upvote:
		return "❌ Error upvoting song: "
	case command.Downvote:
		return "❌ Error downvoting song: "
	default:
		return "❌ Error queueing song: "
	}
}

func mutationLines(cache *queue.Cache, kind command.Kind, songID string, item daemon.QueueItem) []transcript.Line {
	var head string
	switch kind {
	case command.Upvote:
		head = "👍 Upvoted: " + cache.Title(songID)
	case command.Downvote:
		head = "👎 Downvoted: " + cache.Title(songID)
	default:
		head = "✅ Added to queue: " + cache.Label(songID)
	}
	return []transcript.Line{
		transcript.SuccessLine(head),
		transcript.PlainLine(fmt.Sprintf("   Position: %d, Votes: %d", item.Position, item.Votes)),
	}
}

func lyricsLines(song daemon.Song, res lyrics.Result) []transcript.Line {
	lines := []transcript.Line{
		transcript.InfoLine(fmt.Sprintf("🎤 Lyrics: %s - %s", song.Title, song.Artist)),
		transcript.Blank(),
	}
	for _, text := range res.Lines() {
		lines = append(lines, transcript.PlainLine("  "+text))
	}
	if res.Source != "" {
		lines = append(lines, transcript.Blank(), transcript.PlainLine("Source: "+res.Source))
	}
	return lines
}

func (s *Session) statusLines() []transcript.Line {
	mode := "⚫ OFF"
	if s.live {
		mode = "🔴 ON"
	}
	return []transcript.Line{
		transcript.InfoLine("📡 Push channel: " + s.monitor.State().String()),
		transcript.PlainLine("   Live mode: " + mode),
		transcript.PlainLine("   API: " + orUnset(s.apiURL)),
		transcript.PlainLine("   Push: " + orUnset(s.wsURL)),
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func historyLines(history []string) []transcript.Line {
	lines := []transcript.Line{transcript.InfoLine("📜 History:")}
	for i, entry := range history {
		lines = append(lines, transcript.PlainLine(fmt.Sprintf("  %3d  %s", i+1, entry)))
	}
	return lines
}
