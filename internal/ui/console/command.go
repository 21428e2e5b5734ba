package console

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CommandType identifies a console command.
type CommandType int

const (
	CmdToggle CommandType = iota
	CmdSeek
	CmdVolume
	CmdVolumeUp
	CmdVolumeDown
	CmdLoop
	CmdStatus
	CmdOpen
	CmdHelp
	CmdQuit
)

// String returns the string representation of the command type.
func (c CommandType) String() string {
	switch c {
	case CmdToggle:
		return "toggle"
	case CmdSeek:
		return "seek"
	case CmdVolume:
		return "vol"
	case CmdVolumeUp:
		return "+"
	case CmdVolumeDown:
		return "-"
	case CmdLoop:
		return "loop"
	case CmdStatus:
		return "status"
	case CmdOpen:
		return "open"
	case CmdHelp:
		return "help"
	case CmdQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is a parsed console line.
type Command struct {
	Type     CommandType
	Position time.Duration // CmdSeek
	Volume   float64       // CmdVolume
	Loop     bool          // CmdLoop
	Source   string        // CmdOpen
}

// Errors
var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingArg     = errors.New("missing argument")
	ErrInvalidArg     = errors.New("invalid argument")
)

// ParseCommand parses one console line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "p", "play", "pause", "toggle":
		return Command{Type: CmdToggle}, nil

	case "seek", "s":
		if len(args) == 0 {
			return Command{}, errors.Wrap(ErrMissingArg, "seek needs a position")
		}
		pos, err := ParsePosition(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Type: CmdSeek, Position: pos}, nil

	case "vol", "volume", "v":
		if len(args) == 0 {
			return Command{}, errors.Wrap(ErrMissingArg, "vol needs a level between 0 and 1")
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Command{}, errors.Wrapf(ErrInvalidArg, "volume %q", args[0])
		}
		return Command{Type: CmdVolume, Volume: v}, nil

	case "+":
		return Command{Type: CmdVolumeUp}, nil

	case "-":
		return Command{Type: CmdVolumeDown}, nil

	case "loop", "l":
		if len(args) == 0 {
			return Command{}, errors.Wrap(ErrMissingArg, "loop needs on or off")
		}
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			return Command{Type: CmdLoop, Loop: true}, nil
		case "off", "false", "0":
			return Command{Type: CmdLoop, Loop: false}, nil
		default:
			return Command{}, errors.Wrapf(ErrInvalidArg, "loop %q", args[0])
		}

	case "status", "st":
		return Command{Type: CmdStatus}, nil

	case "open", "o":
		src := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if src == "" {
			return Command{}, errors.Wrap(ErrMissingArg, "open needs a path or URL")
		}
		return Command{Type: CmdOpen, Source: src}, nil

	case "h", "help", "?":
		return Command{Type: CmdHelp}, nil

	case "q", "quit", "exit":
		return Command{Type: CmdQuit}, nil

	default:
		return Command{}, errors.Wrapf(ErrUnknownCommand, "%q", fields[0])
	}
}

// ParsePosition parses seconds ("90", "12.5") or "MM:SS".
func ParsePosition(s string) (time.Duration, error) {
	if m, sec, ok := strings.Cut(s, ":"); ok {
		minutes, err := strconv.Atoi(m)
		if err != nil || minutes < 0 {
			return 0, errors.Wrapf(ErrInvalidArg, "position %q", s)
		}
		seconds, err := strconv.Atoi(sec)
		if err != nil || seconds < 0 || seconds >= 60 {
			return 0, errors.Wrapf(ErrInvalidArg, "position %q", s)
		}
		return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, errors.Wrapf(ErrInvalidArg, "position %q", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}
