// Package transcript is the append-only log of what the terminal shows.
package transcript

type Severity int

const (
	Plain Severity = iota
	Error
	Success
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Success:
		return "success"
	case Info:
		return "info"
	default:
		return "plain"
	}
}

type Line struct {
	Text     string
	Severity Severity
}

func PlainLine(text string) Line   { return Line{Text: text, Severity: Plain} }
func ErrorLine(text string) Line   { return Line{Text: text, Severity: Error} }
func SuccessLine(text string) Line { return Line{Text: text, Severity: Success} }
func InfoLine(text string) Line    { return Line{Text: text, Severity: Info} }

// Blank is the spacer line.
func Blank() Line { return Line{} }

// DefaultBanner is shown at startup and after "clear".
func DefaultBanner() []Line {
	return []Line{
		SuccessLine("🎧 Welcome to Nerdy Jukebox Terminal! 🎮"),
		InfoLine(`Type "help" to see available commands.`),
		Blank(),
	}
}

// Transcript holds lines in display order. Lines are never edited; the only
// way to remove them is Clear, which puts the banner back.
type Transcript struct {
	banner []Line
	lines  []Line
}

// New returns a transcript starting with banner.
func New(banner []Line) *Transcript {
	t := &Transcript{banner: append([]Line(nil), banner...)}
	t.Clear()
	return t
}

func (t *Transcript) Append(lines ...Line) {
	t.lines = append(t.lines, lines...)
}

func (t *Transcript) Clear() {
	t.lines = append(make([]Line, 0, len(t.banner)), t.banner...)
}

// Lines returns a copy of the current lines.
func (t *Transcript) Lines() []Line {
	return append([]Line(nil), t.lines...)
}

func (t *Transcript) Len() int { return len(t.lines) }

// Since returns a copy of the lines appended after the first n.
func (t *Transcript) Since(n int) []Line {
	if n >= len(t.lines) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	return append([]Line(nil), t.lines[n:]...)
}
