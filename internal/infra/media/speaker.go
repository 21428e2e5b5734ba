package media

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// SpeakerConfig holds settings for the audio device handle.
type SpeakerConfig struct {
	SampleRate      int `yaml:"sample_rate" mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `yaml:"buffer_ms" mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	ResampleQuality int `yaml:"resample_quality" mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=6"`
	TimeUpdateMs    int `yaml:"time_update_ms" mapstructure:"time_update_ms" default:"250" validate:"gte=50,lte=5000"`
	HTTPTimeoutMs   int `yaml:"http_timeout_ms" mapstructure:"http_timeout_ms" default:"15000" validate:"gte=0"`
}

// The beep speaker is process-global.
var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

func initSpeaker(rate beep.SampleRate, buffer time.Duration) (beep.SampleRate, error) {
	speakerOnce.Do(func() {
		speakerRate = rate
		speakerErr = speaker.Init(rate, rate.N(buffer))
		if speakerErr != nil {
			speakerErr = errors.Wrap(speakerErr, "failed to initialize audio device")
		}
	})
	return speakerRate, speakerErr
}

// SpeakerHandle plays one track on the default audio device.
type SpeakerHandle struct {
	mu sync.Mutex

	config  SpeakerConfig
	client  *http.Client
	rate    beep.SampleRate
	initErr error
	disp    *dispatcher

	// Current load
	gen        uint64
	cancelLoad context.CancelFunc
	loaded     chan struct{} // Closed when the current load finishes
	loadErr    error
	track      *Track

	// Output chain, rebuilt each time it is queued on the speaker
	ctrl   *beep.Ctrl
	vol    *effects.Volume
	queued bool

	volume     float64
	playing    bool
	stopTicker context.CancelFunc
	closed     bool
}

// NewSpeakerHandle creates a handle on the default audio device.
// A device failure does not fail construction; every Play is rejected instead.
func NewSpeakerHandle(config SpeakerConfig) *SpeakerHandle {
	rate, err := initSpeaker(beep.SampleRate(config.SampleRate), time.Duration(config.BufferMs)*time.Millisecond)
	if err != nil {
		zlog.Warn().Msgf("media: audio device unavailable, playback will be rejected: %v", err)
	}
	return &SpeakerHandle{
		config:  config,
		client:  &http.Client{Timeout: time.Duration(config.HTTPTimeoutMs) * time.Millisecond},
		rate:    rate,
		initErr: err,
		disp:    newDispatcher(),
		volume:  1,
	}
}

// Load starts loading src in the background, replacing the current track.
func (h *SpeakerHandle) Load(ctx context.Context, src string) {
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

func (h *SpeakerHandle) load(ctx context.Context, gen uint64, src string, done chan struct{}) {
	defer close(done)

	track, err := Open(ctx, h.client, src)

	h.mu.Lock()
	if gen != h.gen || h.closed {
		h.mu.Unlock()
		if track != nil {
			_ = track.Stream.Close()
		}
		return
	}
	if err != nil {
		h.loadErr = err
		h.mu.Unlock()
		zlog.Debug().Msgf("media: load failed: src=%s err=%v", src, err)
		h.disp.emit(playback.Signal{Type: playback.SignalError, Err: asMediaError(err)})
		return
	}
	h.track = track
	d := track.Duration()
	h.mu.Unlock()

	zlog.Debug().Msgf("media: loaded: src=%s type=%s rate=%d duration=%v",
		src, track.Type, track.Format.SampleRate, d)
	h.disp.emit(playback.Signal{Type: playback.SignalMetadataLoaded, Duration: d})
}

// Play waits for the current load, then starts output.
func (h *SpeakerHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return playback.NewMediaError(playback.ErrorPlayRejected, ErrClosed)
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
	if h.initErr != nil {
		h.mu.Unlock()
		return playback.NewMediaError(playback.ErrorPlayRejected, h.initErr)
	}
	if h.loadErr != nil || h.track == nil {
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

	if !h.queued {
		speaker.Lock()
		if h.track.Stream.Position() >= h.track.Stream.Len() {
			_ = h.track.Stream.Seek(0)
		}
		speaker.Unlock()
		h.buildChainLocked()
		gen := h.gen
		ctrl := h.ctrl
		speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
			// Runs on the speaker goroutine with the speaker lock held
			go h.streamEnded(gen, ctrl)
		})))
		h.queued = true
	}

	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()

	h.playing = true
	h.startTickerLocked()
	h.mu.Unlock()

	h.disp.emit(playback.Signal{Type: playback.SignalPlay})
	return nil
}

// Pause stops output and keeps the position.
func (h *SpeakerHandle) Pause() {
	h.mu.Lock()
	if !h.playing {
		h.mu.Unlock()
		return
	}
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	h.playing = false
	h.stopTickerLocked()
	h.mu.Unlock()

	h.disp.emit(playback.Signal{Type: playback.SignalPause})
}

// Position returns the current playback position.
func (h *SpeakerHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

func (h *SpeakerHandle) positionLocked() time.Duration {
	if h.track == nil {
		return 0
	}
	speaker.Lock()
	p := h.track.Stream.Position()
	speaker.Unlock()
	return h.track.Format.SampleRate.D(p)
}

// SetPosition seeks to d, clamped to the track bounds.
func (h *SpeakerHandle) SetPosition(d time.Duration) {
	h.mu.Lock()
	if h.track == nil {
		h.mu.Unlock()
		return
	}
	n := h.track.Format.SampleRate.N(d)
	if n < 0 {
		n = 0
	}
	if n > h.track.Stream.Len() {
		n = h.track.Stream.Len()
	}
	speaker.Lock()
	err := h.track.Stream.Seek(n)
	speaker.Unlock()
	pos := h.track.Format.SampleRate.D(n)
	h.mu.Unlock()

	if err != nil {
		zlog.Warn().Msgf("media: seek failed: position=%v err=%v", d, err)
		return
	}
	h.disp.emit(playback.Signal{Type: playback.SignalTimeUpdate, Position: pos})
}

// Duration returns the track length once loaded.
func (h *SpeakerHandle) Duration() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.track == nil {
		return 0, false
	}
	return h.track.Duration(), true
}

// Volume returns the linear gain.
func (h *SpeakerHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// SetVolume sets the linear gain in [0,1].
func (h *SpeakerHandle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.volume = v
	if h.vol == nil {
		return
	}
	speaker.Lock()
	applyGain(h.vol, v)
	speaker.Unlock()
}

// Subscribe registers fn for every signal.
func (h *SpeakerHandle) Subscribe(fn func(playback.Signal)) func() {
	return h.disp.subscribe(fn)
}

// Subscribers returns the number of live subscriptions.
func (h *SpeakerHandle) Subscribers() int {
	return h.disp.count()
}

// Close stops output and releases the track.
func (h *SpeakerHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.gen++
	err := h.resetLocked()
	h.mu.Unlock()

	h.disp.close()
	return err
}

func (h *SpeakerHandle) streamEnded(gen uint64, ctrl *beep.Ctrl) {
	h.mu.Lock()
	if gen != h.gen || ctrl != h.ctrl || h.closed {
		h.mu.Unlock()
		return
	}
	h.queued = false
	wasPlaying := h.playing
	h.playing = false
	h.stopTickerLocked()
	pos := h.positionLocked()
	h.mu.Unlock()

	h.disp.emit(playback.Signal{Type: playback.SignalTimeUpdate, Position: pos})
	if wasPlaying {
		h.disp.emit(playback.Signal{Type: playback.SignalPause})
	}
	h.disp.emit(playback.Signal{Type: playback.SignalEnded})
}

// buildChainLocked wraps the track as resample -> volume -> ctrl.
// Must be called with lock held.
func (h *SpeakerHandle) buildChainLocked() {
	var s beep.Streamer = h.track.Stream
	if h.track.Format.SampleRate != h.rate {
		s = beep.Resample(h.config.ResampleQuality, h.track.Format.SampleRate, h.rate, s)
	}
	h.vol = &effects.Volume{Streamer: s, Base: 2}
	applyGain(h.vol, h.volume)
	h.ctrl = &beep.Ctrl{Streamer: h.vol, Paused: true}
}

// resetLocked stops output and drops the current track.
// Must be called with lock held.
func (h *SpeakerHandle) resetLocked() error {
	if h.cancelLoad != nil {
		h.cancelLoad()
		h.cancelLoad = nil
	}
	h.stopTickerLocked()
	if h.queued {
		speaker.Clear()
		h.queued = false
	}
	h.playing = false
	h.ctrl = nil
	h.vol = nil
	h.loaded = nil
	h.loadErr = nil

	var err error
	if h.track != nil {
		err = h.track.Stream.Close()
		h.track = nil
	}
	return err
}

// startTickerLocked emits SignalTimeUpdate periodically while playing.
// Must be called with lock held.
func (h *SpeakerHandle) startTickerLocked() {
	h.stopTickerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	h.stopTicker = cancel
	go tick(ctx, time.Duration(h.config.TimeUpdateMs)*time.Millisecond, h.reportPosition)
}

// reportPosition emits the position unless the ticker that fired was stopped.
func (h *SpeakerHandle) reportPosition(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	h.disp.emit(playback.Signal{Type: playback.SignalTimeUpdate, Position: h.positionLocked()})
}

func (h *SpeakerHandle) stopTickerLocked() {
	if h.stopTicker != nil {
		h.stopTicker()
		h.stopTicker = nil
	}
}

// tick calls report every interval until ctx is done. report receives ctx
// so it can drop a tick that raced with the stop under the handle lock.
func tick(ctx context.Context, interval time.Duration, report func(context.Context)) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report(ctx)
		}
	}
}

// applyGain maps linear gain to the base-2 volume effect. Zero is silent.
func applyGain(v *effects.Volume, gain float64) {
	if gain <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(gain)
}
