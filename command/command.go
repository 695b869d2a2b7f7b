// Package command turns one line of user input into a typed command.
package command

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	Help
	Songs
	ViewQueue
	Enqueue
	Upvote
	Downvote
	Live
	Clear
	WhoAmI
	Lyrics
	Status
	History
)

type LiveMode string

const (
	LiveOn     LiveMode = "on"
	LiveOff    LiveMode = "off"
	LiveStatus LiveMode = "status"
)

// Command is a parsed input line.
type Command struct {
	Kind Kind
	// Verb is the first token, lower-cased.
	Verb string
	Args []string
	// Raw is the trimmed input line.
	Raw string
}

// SongID is the argument of Enqueue, Upvote, Downvote and Lyrics.
func (c Command) SongID() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

func (c Command) LiveMode() LiveMode {
	if len(c.Args) == 0 {
		return ""
	}
	return LiveMode(strings.ToLower(c.Args[0]))
}

// ValidationError reports a command whose arguments do not fit its verb.
type ValidationError struct {
	Verb    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func usage(verb, format string, args ...any) *ValidationError {
	return &ValidationError{Verb: verb, Message: fmt.Sprintf(format, args...)}
}

// Parse tokenizes line. ok is false for blank input, which must be ignored.
// Arguments are validated here so nothing malformed reaches the service.
func Parse(line string) (cmd Command, ok bool, err error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Command{}, false, nil
	}

	fields := strings.Fields(raw)
	cmd = Command{
		Verb: strings.ToLower(fields[0]),
		Args: fields[1:],
		Raw:  raw,
	}

	switch cmd.Verb {
	case "help":
		cmd.Kind = Help
	case "songs":
		cmd.Kind = Songs
	case "ls":
		if len(cmd.Args) != 1 || !strings.EqualFold(cmd.Args[0], "songs") {
			return cmd, true, usage(cmd.Verb, `Unknown ls command. Try "ls songs"`)
		}
		cmd.Kind = Songs
	case "view":
		if len(cmd.Args) != 1 || !strings.EqualFold(cmd.Args[0], "queue") {
			return cmd, true, usage(cmd.Verb, `Unknown view command. Try "view queue"`)
		}
		cmd.Kind = ViewQueue
	case "queue":
		switch len(cmd.Args) {
		case 0:
			cmd.Kind = ViewQueue
		case 1:
			cmd.Kind = Enqueue
		default:
			return cmd, true, usage(cmd.Verb, "Too many arguments. Usage: queue <id>")
		}
	case "upvote", "downvote", "lyrics":
		switch {
		case len(cmd.Args) == 0:
			return cmd, true, usage(cmd.Verb, "Please provide a song ID. Usage: %s <id>", cmd.Verb)
		case len(cmd.Args) > 1:
			return cmd, true, usage(cmd.Verb, "Too many arguments. Usage: %s <id>", cmd.Verb)
		}
		cmd.Kind = map[string]Kind{"upvote": Upvote, "downvote": Downvote, "lyrics": Lyrics}[cmd.Verb]
	case "live":
		if len(cmd.Args) == 0 {
			return cmd, true, usage(cmd.Verb, "Please specify: live on, live off, or live status")
		}
		switch cmd.LiveMode() {
		case LiveOn, LiveOff, LiveStatus:
		default:
			return cmd, true, usage(cmd.Verb, "Invalid live command. Use: on, off, or status")
		}
		if len(cmd.Args) > 1 {
			return cmd, true, usage(cmd.Verb, "Too many arguments. Usage: live on|off|status")
		}
		cmd.Kind = Live
	case "clear":
		cmd.Kind = Clear
	case "whoami":
		cmd.Kind = WhoAmI
	case "status":
		cmd.Kind = Status
	case "history":
		cmd.Kind = History
	default:
		cmd.Kind = Unknown
	}
	return cmd, true, nil
}
