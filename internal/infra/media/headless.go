package media

import (
	"context"
	"net/http"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// HeadlessConfig holds settings for the clock-driven handle.
type HeadlessConfig struct {
	TimeUpdateMs  int  `yaml:"time_update_ms" mapstructure:"time_update_ms" default:"250" validate:"gte=10,lte=5000"`
	HTTPTimeoutMs int  `yaml:"http_timeout_ms" mapstructure:"http_timeout_ms" default:"15000" validate:"gte=0"`
	RejectPlay    bool `yaml:"reject_play" mapstructure:"reject_play"` // Refuse every play request
}

// HeadlessHandle decodes tracks but produces no audio. Position advances on
// the wall clock while playing.
type HeadlessHandle struct {
	mu sync.Mutex

	config HeadlessConfig
	client *http.Client
	disp   *dispatcher

	// Current load
	gen        uint64
	cancelLoad context.CancelFunc
	loaded     chan struct{}
	loadErr    error
	duration   time.Duration
	known      bool

	// Clock
	offset    time.Duration // Position at startedAt, or while paused
	startedAt time.Time
	playing   bool
	playID    uint64
	endTimer  *time.Timer

	volume     float64
	stopTicker context.CancelFunc
	closed     bool
}

// NewHeadlessHandle creates a handle without an audio device.
func NewHeadlessHandle(config HeadlessConfig) *HeadlessHandle {
	return &HeadlessHandle{
		config: config,
		client: &http.Client{Timeout: time.Duration(config.HTTPTimeoutMs) * time.Millisecond},
		disp:   newDispatcher(),
		volume: 1,
	}
}

// Load starts loading src in the background, replacing the current track.
func (h *HeadlessHandle) Load(ctx context.Context, src string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.resetLocked()
	h.gen++
	gen := h.gen
	loadCtx, cancel := context.WithCancel(ctx)
	h.cancelLoad = cancel
	done := make(chan struct{})
	h.loaded = done
	h.mu.Unlock()

	go h.load(loadCtx, gen, src, done)
}

func (h *HeadlessHandle) load(ctx context.Context, gen uint64, src string, done chan struct{}) {
	defer close(done)

	track, err := Open(ctx, h.client, src)
	var d time.Duration
	if track != nil {
		d = track.Duration()
		_ = track.Stream.Close()
	}

	h.mu.Lock()
	if gen != h.gen || h.closed {
		h.mu.Unlock()
		return
	}
	if err != nil {
		h.loadErr = err
		h.mu.Unlock()
		h.disp.emit(playback.Signal{Type: playback.SignalError, Err: asMediaError(err)})
		return
	}
	h.duration = d
	h.known = true
	h.mu.Unlock()

	zlog.Debug().Msgf("media: headless loaded: src=%s type=%s duration=%v", src, track.Type, d)
	h.disp.emit(playback.Signal{Type: playback.SignalMetadataLoaded, Duration: d})
}

// Play waits for the current load, then starts the clock.
func (h *HeadlessHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return playback.NewMediaError(playback.ErrorPlayRejected, ErrClosed)
	}
	if h.config.RejectPlay {
		h.mu.Unlock()
		return playback.NewMediaError(playback.ErrorPlayRejected, ErrPlayRefused)
	}
	loaded := h.loaded
	h.mu.Unlock()

	if loaded == nil {
		return playback.NewMediaError(playback.ErrorPlayRejected, ErrNoSource)
	}
	select {
	case <-loaded:
	case <-ctx.Done():
		return playback.NewMediaError(playback.ErrorPlayRejected, ctx.Err())
	}

	h.mu.Lock()
	if h.loadErr != nil || !h.known {
		err := h.loadErr
		h.mu.Unlock()
		if err == nil {
			err = ErrNoSource
		}
		return playback.NewMediaError(playback.ErrorPlayRejected, err)
	}
	if h.playing {
		h.mu.Unlock()
		return nil
	}
	if h.offset >= h.duration {
		h.offset = 0
	}
	h.startClockLocked()
	h.startTickerLocked()
	h.mu.Unlock()

	h.disp.emit(playback.Signal{Type: playback.SignalPlay})
	return nil
}

// Pause stops the clock and keeps the position.
func (h *HeadlessHandle) Pause() {
	h.mu.Lock()
	if !h.playing {
		h.mu.Unlock()
		return
	}
	h.offset = h.positionLocked()
	h.stopClockLocked()
	h.stopTickerLocked()
	h.mu.Unlock()

	h.disp.emit(playback.Signal{Type: playback.SignalPause})
}

// Position returns the current clock position.
func (h *HeadlessHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

func (h *HeadlessHandle) positionLocked() time.Duration {
	pos := h.offset
	if h.playing {
		pos += time.Since(h.startedAt)
	}
	if h.known && pos > h.duration {
		pos = h.duration
	}
	return pos
}

// SetPosition moves the clock to d, clamped to the track bounds.
func (h *HeadlessHandle) SetPosition(d time.Duration) {
	h.mu.Lock()
	if !h.known {
		h.mu.Unlock()
		return
	}
	if d < 0 {
		d = 0
	}
	if d > h.duration {
		d = h.duration
	}
	h.offset = d
	if h.playing {
		h.stopClockLocked()
		h.startClockLocked()
	}
	h.mu.Unlock()

	h.disp.emit(playback.Signal{Type: playback.SignalTimeUpdate, Position: d})
}

// Duration returns the track length once loaded.
func (h *HeadlessHandle) Duration() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration, h.known
}

// Volume returns the stored gain.
func (h *HeadlessHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// SetVolume stores the gain.
func (h *HeadlessHandle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = v
}

// Subscribe registers fn for every signal.
func (h *HeadlessHandle) Subscribe(fn func(playback.Signal)) func() {
	return h.disp.subscribe(fn)
}

// Subscribers returns the number of live subscriptions.
func (h *HeadlessHandle) Subscribers() int {
	return h.disp.count()
}

// Close stops the clock.
func (h *HeadlessHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.gen++
	h.resetLocked()
	h.mu.Unlock()

	h.disp.close()
	return nil
}

func (h *HeadlessHandle) finish(id uint64) {
	h.mu.Lock()
	if id != h.playID || !h.playing || h.closed {
		h.mu.Unlock()
		return
	}
	h.offset = h.duration
	h.playing = false
	h.endTimer = nil
	h.stopTickerLocked()
	d := h.duration
	h.mu.Unlock()

	h.disp.emit(playback.Signal{Type: playback.SignalTimeUpdate, Position: d})
	h.disp.emit(playback.Signal{Type: playback.SignalPause})
	h.disp.emit(playback.Signal{Type: playback.SignalEnded})
}

// startClockLocked starts the clock from offset and arms the end timer.
// Must be called with lock held.
func (h *HeadlessHandle) startClockLocked() {
	h.playing = true
	h.startedAt = time.Now()
	h.playID++
	id := h.playID
	h.endTimer = time.AfterFunc(h.duration-h.offset, func() {
		h.finish(id)
	})
}

// stopClockLocked freezes the clock. The caller saves offset first.
// Must be called with lock held.
func (h *HeadlessHandle) stopClockLocked() {
	h.playing = false
	h.playID++
	if h.endTimer != nil {
		h.endTimer.Stop()
		h.endTimer = nil
	}
}

func (h *HeadlessHandle) startTickerLocked() {
	h.stopTickerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	h.stopTicker = cancel
	go tick(ctx, time.Duration(h.config.TimeUpdateMs)*time.Millisecond, h.reportPosition)
}

func (h *HeadlessHandle) reportPosition(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	h.disp.emit(playback.Signal{Type: playback.SignalTimeUpdate, Position: h.positionLocked()})
}

func (h *HeadlessHandle) stopTickerLocked() {
	if h.stopTicker != nil {
		h.stopTicker()
		h.stopTicker = nil
	}
}

// resetLocked drops the current track.
// Must be called with lock held.
func (h *HeadlessHandle) resetLocked() {
	if h.cancelLoad != nil {
		h.cancelLoad()
		h.cancelLoad = nil
	}
	h.stopClockLocked()
	h.stopTickerLocked()
	h.loaded = nil
	h.loadErr = nil
	h.duration = 0
	h.known = false
	h.offset = 0
}
