package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultVolume is the initial gain when none is configured.
const DefaultVolume = 0.7

// Config holds controller configuration.
type Config struct {
	Source   string   // Path or URL of the media resource
	AutoPlay bool     // Request playback on mount
	Loop     bool     // Restart from 0 at end of track
	Volume   float64  // Initial gain, 0.0 - 1.0
	Messages Messages // Empty fields fall back to DefaultMessages
}

// DefaultConfig returns a Config for src with autoplay and loop disabled.
func DefaultConfig(src string) Config {
	return Config{
		Source:   src,
		Volume:   DefaultVolume,
		Messages: DefaultMessages(),
	}
}

// Controller mirrors a single media handle into observable playback state.
type Controller struct {
	mu sync.RWMutex

	handle   Handle
	config   Config
	messages Messages

	// Mirrored state
	state         State
	isPlaying     bool
	isLoaded      bool
	volume        float64
	currentTime   time.Duration
	duration      time.Duration
	durationKnown bool
	errMsg        string

	// Lifecycle
	subs    scope
	retry   *oneShot // Autoplay retry on first user interaction
	started bool     // Playback began since the last mount
	mounted bool
	closed  bool

	// Events
	eventCh chan Event

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller that drives h. Call Mount to start loading.
func NewController(h Handle, config Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		handle:   h,
		config:   config,
		messages: config.Messages.withDefaults(),
		state:    StateIdle,
		volume:   clampVolume(config.Volume),
		retry:    &oneShot{},
		eventCh:  make(chan Event, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events returns the event channel. It is closed by Unmount.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Mount subscribes to the handle, applies the volume, and requests the load.
// With AutoPlay set it also requests playback; a rejection leaves the state
// unchanged and defers to the first Interact call.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrUnmounted
	}
	if c.mounted {
		c.mu.Unlock()
		return nil
	}

	c.mounted = true
	c.state = StateLoading
	c.started = false
	c.retry = &oneShot{}

	// Acquire everything released by Unmount/SetSource as one scope
	c.subs.add(c.handle.Subscribe(c.onSignal))
	retry := c.retry
	c.subs.add(retry.disarm)

	autoPlay := c.config.AutoPlay
	if autoPlay {
		retry.arm()
	}
	src := c.config.Source
	volume := c.volume

	c.sendEventLocked(EventStateChanged)
	c.mu.Unlock()

	zlog.Debug().Msgf("playback: mounting: src=%s autoplay=%v loop=%v volume=%.2f",
		src, autoPlay, c.config.Loop, volume)

	c.handle.SetVolume(volume)
	c.handle.Load(ctx, src)

	if !autoPlay {
		return nil
	}

	if err := c.handle.Play(ctx); err != nil {
		zlog.Warn().Msgf("playback: autoplay rejected, waiting for user interaction: %v", err)
		return nil
	}
	c.markPlaying()
	return nil
}

// Interact reports a user interaction. The first call after a mount with
// AutoPlay retries playback once, unless playback started since the mount or
// an error is being shown.
func (c *Controller) Interact(ctx context.Context) {
	c.mu.Lock()
	if c.closed || !c.mounted || !c.retry.take() {
		c.mu.Unlock()
		return
	}
	if c.started || c.errMsg != "" {
		c.mu.Unlock()
		zlog.Debug().Msg("playback: interaction retry skipped")
		return
	}
	c.mu.Unlock()

	zlog.Debug().Msg("playback: retrying autoplay after user interaction")
	if err := c.handle.Play(ctx); err != nil {
		zlog.Warn().Msgf("playback: interaction retry rejected: %v", err)
		c.fail(c.messages.AutoplayFailed)
		return
	}
	c.markPlaying()
}

// TogglePlayPause pauses when playing and requests playback otherwise.
// A rejected play request sets the error banner and is returned wrapped.
func (c *Controller) TogglePlayPause(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrUnmounted
	}
	if !c.mounted {
		c.mu.RUnlock()
		return ErrNotMounted
	}
	if !c.isLoaded {
		c.mu.RUnlock()
		return ErrNotLoaded
	}
	playing := c.isPlaying
	c.mu.RUnlock()

	if playing {
		c.handle.Pause()
		c.markPaused()
		return nil
	}

	if err := c.handle.Play(ctx); err != nil {
		c.fail(c.messages.PlaybackFailed)
		return errors.Mark(errors.Wrap(err, "failed to start playback"), ErrPlayBlocked)
	}
	c.markPlaying()
	return nil
}

// SetVolume applies v, clamped to [0,1], to the handle and the state.
// NaN is ignored.
func (c *Controller) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = clampVolume(v)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.volume = v
	c.sendEventLocked(EventVolumeChanged)
	c.mu.Unlock()

	c.handle.SetVolume(v)
}

// Seek moves both the displayed and the handle position to d.
func (c *Controller) Seek(d time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrUnmounted
	}
	if !c.isLoaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	d = c.clampPositionLocked(d)
	c.currentTime = d
	c.sendEventLocked(EventPositionChanged)
	c.mu.Unlock()

	c.handle.SetPosition(d)
	return nil
}

// SetLoop changes the loop policy for subsequent end-of-track signals.
func (c *Controller) SetLoop(loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.config.Loop == loop {
		return
	}
	c.config.Loop = loop
	c.sendEventLocked(EventStateChanged)
}

// SetSource releases every subscription, resets the state, and mounts src.
func (c *Controller) SetSource(ctx context.Context, src string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrUnmounted
	}

	c.subs.release()
	wasPlaying := c.isPlaying

	c.mounted = false
	c.state = StateIdle
	c.isPlaying = false
	c.isLoaded = false
	c.currentTime = 0
	c.duration = 0
	c.durationKnown = false
	c.errMsg = ""
	c.config.Source = src
	c.mu.Unlock()

	if wasPlaying {
		c.handle.Pause()
	}
	return c.Mount(ctx)
}

// Unmount releases every subscription, disarms the interaction retry,
// closes the handle, and closes the event channel. It is safe to call twice.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mounted = false
	c.subs.release()
	c.cancel()
	close(c.eventCh)
	c.mu.Unlock()

	if err := c.handle.Close(); err != nil {
		zlog.Warn().Msgf("playback: failed to close handle: %v", err)
	}
	zlog.Debug().Msg("playback: unmounted")
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ControlsEnabled reports whether toggle and seek are usable.
func (c *Controller) ControlsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isLoaded && !c.closed
}

// RetryArmed reports whether the interaction retry is still pending.
func (c *Controller) RetryArmed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retry.isArmed()
}

// onSignal handles every signal from the handle.
func (c *Controller) onSignal(sig Signal) {
	switch sig.Type {
	case SignalMetadataLoaded:
		c.onMetadataLoaded(sig.Duration)
	case SignalTimeUpdate:
		c.onTimeUpdate(sig.Position)
	case SignalPlay:
		c.markPlaying()
	case SignalPause:
		c.markPaused()
	case SignalEnded:
		c.onEnded()
	case SignalError:
		c.onError(sig.Err)
	}
}

func (c *Controller) onMetadataLoaded(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return
	}

	c.isLoaded = true
	if !c.durationKnown {
		if d < 0 {
			d = 0
		}
		c.duration = d
		c.durationKnown = true
	}
	c.currentTime = c.clampPositionLocked(c.currentTime)
	if c.state == StateLoading {
		c.state = StateReady
	}

	zlog.Debug().Msgf("playback: metadata loaded: src=%s duration=%v", c.config.Source, c.duration)
	c.sendEventLocked(EventMetadataLoaded)
}

func (c *Controller) onTimeUpdate(pos time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return
	}
	pos = c.clampPositionLocked(pos)
	if pos == c.currentTime {
		return
	}
	c.currentTime = pos
	c.sendEventLocked(EventPositionChanged)
}

func (c *Controller) onEnded() {
	c.mu.Lock()
	if !c.activeLocked() {
		c.mu.Unlock()
		return
	}

	c.isPlaying = false
	if c.durationKnown {
		c.currentTime = c.duration
	}

	if !c.config.Loop {
		c.state = StateEnded
		c.sendEventLocked(EventStateChanged)
		c.mu.Unlock()
		zlog.Debug().Msgf("playback: track ended: src=%s", c.config.Source)
		return
	}

	c.currentTime = 0
	c.sendEventLocked(EventPositionChanged)
	c.mu.Unlock()

	zlog.Debug().Msgf("playback: track ended, looping: src=%s", c.config.Source)

	c.handle.SetPosition(0)
	if err := c.handle.Play(c.ctx); err != nil {
		zlog.Warn().Msgf("playback: loop restart rejected: %v", err)
		c.fail(c.messages.AutoplayFailed)
		return
	}
	c.markPlaying()
}

func (c *Controller) onError(me *MediaError) {
	kind := ErrorUnknown
	if me != nil {
		kind = me.Kind
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return
	}

	zlog.Error().Msgf("playback: media error: src=%s kind=%s err=%v", c.config.Source, kind, me)

	c.isPlaying = false
	c.state = StateErrored
	c.setErrorLocked(c.messages.ForKind(kind))
	c.sendEventLocked(EventStateChanged)
}

// markPlaying records a successful play request or play signal.
func (c *Controller) markPlaying() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return
	}
	c.setErrorLocked("")
	c.started = true
	if c.isPlaying && c.state == StatePlaying {
		return
	}
	c.isPlaying = true
	c.state = StatePlaying
	c.sendEventLocked(EventStateChanged)
}

// markPaused records a pause request or pause signal.
func (c *Controller) markPaused() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return
	}
	if !c.isPlaying && c.state != StatePlaying {
		return
	}
	c.isPlaying = false
	if c.state == StatePlaying {
		c.state = StatePaused
	}
	c.sendEventLocked(EventStateChanged)
}

// fail moves to Errored with msg.
func (c *Controller) fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activeLocked() {
		return
	}
	c.isPlaying = false
	c.state = StateErrored
	c.setErrorLocked(msg)
	c.sendEventLocked(EventStateChanged)
}

// setErrorLocked sets the banner message and emits EventErrorChanged on change.
// Must be called with lock held.
func (c *Controller) setErrorLocked(msg string) {
	if c.errMsg == msg {
		return
	}
	c.errMsg = msg
	c.sendEventLocked(EventErrorChanged)
}

// activeLocked reports whether signals and request results still apply.
// Must be called with lock held.
func (c *Controller) activeLocked() bool {
	return c.mounted && !c.closed
}

// clampPositionLocked bounds d to [0, duration].
// Must be called with lock held.
func (c *Controller) clampPositionLocked(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if c.durationKnown && d > c.duration {
		return c.duration
	}
	return d
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:         c.state,
		Source:        c.config.Source,
		IsPlaying:     c.isPlaying,
		IsLoaded:      c.isLoaded,
		Volume:        c.volume,
		CurrentTime:   c.currentTime,
		Duration:      c.duration,
		DurationKnown: c.durationKnown,
		Error:         c.errMsg,
		Loop:          c.config.Loop,
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(t EventType) {
	if c.closed {
		return
	}
	e := Event{Type: t, Snapshot: c.snapshotLocked()}
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		// Channel full, drop event; consumers read Snapshot for the latest state
	}
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
