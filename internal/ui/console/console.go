// Package console provides the terminal transport bar and command loop.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
)

// Player is the playback surface driven by the console.
type Player interface {
	TogglePlayPause(ctx context.Context) error
	Seek(d time.Duration) error
	SetVolume(v float64)
	SetLoop(loop bool)
	SetSource(ctx context.Context, src string) error
	Interact(ctx context.Context)
	Snapshot() playback.Snapshot
}

// Hub delivers playback notifications.
type Hub interface {
	Subscribe(stream notification.Stream) string
	Unsubscribe(subscriptionID string)
	SendTo(subscriptionID string, n *notification.Notification) error
	SequenceNo() uint64
}

// Config holds console settings.
type Config struct {
	Prompt      string
	BarWidth    int
	VolumeStep  float64
	HistoryFile string
	// AttachLogs, when set, receives the terminal's stderr once the prompt is up.
	AttachLogs func(w io.Writer)
}

const helpText = `commands:
  p | play | pause | toggle   toggle playback
  seek <sec|mm:ss>            jump to a position
  vol <0..1>, +, -            set or step the volume
  loop on|off                 restart at the end of the track
  open <path|url>             load another track
  status                      show the transport bar
  q | quit                    exit`

// Console renders playback state and dispatches typed commands.
type Console struct {
	player Player
	config Config
	out    io.Writer
}

// New creates a console writing to out.
func New(player Player, config Config, out io.Writer) *Console {
	if config.Prompt == "" {
		config.Prompt = "deck> "
	}
	if config.BarWidth < MinBarWidth {
		config.BarWidth = 30
	}
	if config.VolumeStep <= 0 {
		config.VolumeStep = 0.05
	}
	return &Console{player: player, config: config, out: out}
}

// Run starts a readline prompt on the terminal and serves commands until quit,
// EOF, or ctx is done.
func Run(ctx context.Context, player Player, hub Hub, config Config) error {
	c := New(player, config, nil)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.config.Prompt,
		HistoryFile:     c.config.HistoryFile,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return errors.Wrap(err, "failed to start prompt")
	}
	defer rl.Close()

	c.out = rl.Stdout()
	if c.config.AttachLogs != nil {
		c.config.AttachLogs(rl.Stderr())
	}

	detach, err := c.Attach(hub)
	if err != nil {
		return err
	}
	defer detach()

	stop := make(chan struct{})
	defer close(stop)
	closeWhenDone(ctx, stop, rl)

	return c.loop(ctx, rl)
}

// Attach subscribes the console to hub and prints the current transport bar
// through the new subscription.
func (c *Console) Attach(hub Hub) (func(), error) {
	id := hub.Subscribe(notification.StreamFunc(c.notify))
	detach := func() { hub.Unsubscribe(id) }

	err := hub.SendTo(id, &notification.Notification{
		SequenceNo: hub.SequenceNo(),
		Event:      playback.Event{Type: playback.EventStateChanged, Snapshot: c.player.Snapshot()},
		Time:       time.Now(),
	})
	if err != nil {
		detach()
		return nil, errors.Wrap(err, "failed to print initial state")
	}
	return detach, nil
}

// closeWhenDone closes closer once ctx is done, unless stop is closed first.
// The returned channel is closed when the watching goroutine exits.
func closeWhenDone(ctx context.Context, stop <-chan struct{}, closer io.Closer) <-chan struct{} {
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = closer.Close()
		case <-stop:
		}
	}()
	return exited
}

func (c *Console) loop(ctx context.Context, rl *readline.Instance) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if strings.TrimSpace(line) == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read command")
		}

		quit, err := c.Handle(ctx, line)
		if err != nil {
			fmt.Fprintf(c.out, "! %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Handle parses and executes line, then reports the interaction to the
// player. Blank lines are ignored.
func (c *Console) Handle(ctx context.Context, line string) (bool, error) {
	cmd, err := ParseCommand(line)
	if errors.Is(err, ErrEmptyCommand) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cmd.Type == CmdQuit {
		return true, nil
	}

	err = c.Execute(ctx, cmd)
	c.player.Interact(ctx)
	return false, err
}

// Execute applies cmd to the player.
func (c *Console) Execute(ctx context.Context, cmd Command) error {
	zlog.Debug().Msgf("console: command %s", cmd.Type)

	switch cmd.Type {
	case CmdToggle:
		return c.explain(c.player.TogglePlayPause(ctx))
	case CmdSeek:
		return c.explain(c.player.Seek(cmd.Position))
	case CmdVolume:
		c.player.SetVolume(cmd.Volume)
	case CmdVolumeUp:
		c.player.SetVolume(c.player.Snapshot().Volume + c.config.VolumeStep)
	case CmdVolumeDown:
		c.player.SetVolume(c.player.Snapshot().Volume - c.config.VolumeStep)
	case CmdLoop:
		c.player.SetLoop(cmd.Loop)
	case CmdOpen:
		return c.explain(c.player.SetSource(ctx, cmd.Source))
	case CmdStatus:
		fmt.Fprintln(c.out, Render(c.player.Snapshot(), c.config.BarWidth))
	case CmdHelp:
		fmt.Fprintln(c.out, helpText)
	}
	return nil
}

// explain turns controller errors into console messages.
func (c *Console) explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playback.ErrNotLoaded):
		return errors.New("controls are disabled until the track loads")
	case errors.Is(err, playback.ErrPlayBlocked):
		// The banner already carries the user-facing message
		zlog.Debug().Msgf("console: play blocked: %v", err)
		return nil
	default:
		return err
	}
}

// notify prints the transport bar for every change except position ticks.
func (c *Console) notify(n *notification.Notification) error {
	if n.Event.Type == playback.EventPositionChanged {
		return nil
	}
	_, err := fmt.Fprintln(c.out, Render(n.Event.Snapshot, c.config.BarWidth))
	return err
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("play"),
		readline.PcItem("pause"),
		readline.PcItem("toggle"),
		readline.PcItem("seek"),
		readline.PcItem("vol"),
		readline.PcItem("loop", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("open"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
