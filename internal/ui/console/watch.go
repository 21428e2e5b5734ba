package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
)

// Watcher prints every notification as one line and finishes when the track
// ends or playback fails. It implements notification.Stream.
type Watcher struct {
	player Player
	out    io.Writer
	width  int

	mu      sync.Mutex
	started bool
	done    chan error
}

// NewWatcher creates a watcher writing to out.
func NewWatcher(player Player, out io.Writer, width int) *Watcher {
	return &Watcher{
		player: player,
		out:    out,
		width:  width,
		done:   make(chan error, 1),
	}
}

// Send prints n. Once metadata is loaded without playback, the watcher
// reports a single interaction so a rejected autoplay is retried.
func (w *Watcher) Send(n *notification.Notification) error {
	snap := n.Event.Snapshot
	line := strings.ReplaceAll(Render(snap, w.width), "\n", "  ")

	w.mu.Lock()
	_, err := fmt.Fprintf(w.out, "[%d] %-16s %-8s %s\n", n.SequenceNo, n.Event.Type, snap.State, line)
	nudge := n.Event.Type == playback.EventMetadataLoaded && !snap.IsPlaying && !w.started
	if nudge {
		w.started = true
	}
	w.mu.Unlock()

	switch {
	case snap.State == playback.StateEnded:
		w.finish(nil)
	case snap.State == playback.StateErrored:
		w.finish(errors.Newf("playback failed: %s", snap.Error))
	case nudge:
		go w.player.Interact(context.Background())
	}
	return err
}

// Wait blocks until the track ends, playback fails, or ctx is done.
func (w *Watcher) Wait(ctx context.Context) error {
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (w *Watcher) finish(err error) {
	select {
	case w.done <- err:
	default:
	}
}
