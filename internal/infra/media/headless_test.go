package media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep/effects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/app/playback"
)

// recorder collects signals delivered by a handle.
type recorder struct {
	mu      sync.Mutex
	signals []playback.Signal
}

func (r *recorder) record(sig playback.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
}

func (r *recorder) has(typ playback.SignalType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.signals {
		if s.Type == typ {
			return true
		}
	}
	return false
}

func (r *recorder) find(typ playback.SignalType) (playback.Signal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.signals {
		if s.Type == typ {
			return s, true
		}
	}
	return playback.Signal{}, false
}

func (r *recorder) count(typ playback.SignalType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.signals {
		if s.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signals)
}

// positions returns the position of every time update in delivery order.
func (r *recorder) positions() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Duration
	for _, s := range r.signals {
		if s.Type == playback.SignalTimeUpdate {
			out = append(out, s.Position)
		}
	}
	return out
}

func newHeadless(t *testing.T, cfg HeadlessConfig) (*HeadlessHandle, *recorder) {
	t.Helper()
	if cfg.TimeUpdateMs == 0 {
		cfg.TimeUpdateMs = 20
	}
	h := NewHeadlessHandle(cfg)
	rec := &recorder{}
	h.Subscribe(rec.record)
	t.Cleanup(func() { _ = h.Close() })
	return h, rec
}

func TestHeadless_LoadAndPlayToEnd(t *testing.T) {
	h, rec := newHeadless(t, HeadlessConfig{})

	h.Load(context.Background(), writeWav(t, 200*time.Millisecond))
	require.Eventually(t, func() bool { return rec.has(playback.SignalMetadataLoaded) }, 2*time.Second, 5*time.Millisecond)

	sig, _ := rec.find(playback.SignalMetadataLoaded)
	assert.Equal(t, 200*time.Millisecond, sig.Duration)
	d, known := h.Duration()
	assert.True(t, known)
	assert.Equal(t, 200*time.Millisecond, d)

	require.NoError(t, h.Play(context.Background()))
	require.Eventually(t, func() bool { return rec.has(playback.SignalEnded) }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, rec.has(playback.SignalPlay))
	assert.True(t, rec.has(playback.SignalPause))
	assert.Equal(t, 200*time.Millisecond, h.Position())
}

func TestHeadless_TimeUpdatesWhilePlaying(t *testing.T) {
	h, rec := newHeadless(t, HeadlessConfig{TimeUpdateMs: 20})

	h.Load(context.Background(), writeWav(t, 5*time.Second))
	require.Eventually(t, func() bool { return rec.has(playback.SignalMetadataLoaded) }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.Play(context.Background()))

	require.Eventually(t, func() bool { return rec.count(playback.SignalTimeUpdate) >= 3 }, 2*time.Second, 5*time.Millisecond)
	h.Pause()

	positions := rec.positions()
	for i := 1; i < len(positions); i++ {
		assert.Greater(t, positions[i], positions[i-1], "position %d", i)
	}
	assert.Less(t, positions[len(positions)-1], 5*time.Second)
}

func TestHeadless_TimersStop(t *testing.T) {
	tests := []struct {
		name string
		stop func(h *HeadlessHandle)
	}{
		{name: "pause", stop: func(h *HeadlessHandle) { h.Pause() }},
		{name: "close", stop: func(h *HeadlessHandle) { _ = h.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, rec := newHeadless(t, HeadlessConfig{TimeUpdateMs: 20})

			// Short enough that a leaked end timer would fire during the wait
			h.Load(context.Background(), writeWav(t, 150*time.Millisecond))
			require.Eventually(t, func() bool { return rec.has(playback.SignalMetadataLoaded) }, 2*time.Second, 5*time.Millisecond)
			require.NoError(t, h.Play(context.Background()))
			require.Eventually(t, func() bool { return rec.count(playback.SignalTimeUpdate) >= 1 }, time.Second, 2*time.Millisecond)

			tt.stop(h)

			h.mu.Lock()
			assert.Nil(t, h.stopTicker)
			assert.Nil(t, h.endTimer)
			assert.False(t, h.playing)
			h.mu.Unlock()

			time.Sleep(40 * time.Millisecond)
			settled := rec.total()
			time.Sleep(250 * time.Millisecond)

			assert.Equal(t, settled, rec.total(), "no signals after stopping")
			assert.False(t, rec.has(playback.SignalEnded))
		})
	}
}

func TestHeadless_PlayWaitsForLoad(t *testing.T) {
	h, _ := newHeadless(t, HeadlessConfig{})

	h.Load(context.Background(), writeWav(t, time.Second))
	require.NoError(t, h.Play(context.Background()))
	h.Pause()

	pos := h.Position()
	assert.Less(t, pos, time.Second)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, pos, h.Position())
}

func TestHeadless_PlayRejected(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HeadlessConfig
		loadWav bool
		src     string
		setup   func(h *HeadlessHandle)
	}{
		{name: "reject play", cfg: HeadlessConfig{RejectPlay: true}, loadWav: true},
		{name: "nothing loaded"},
		{name: "load failed", src: "ftp://example.com/a.mp3"},
		{name: "closed", setup: func(h *HeadlessHandle) { _ = h.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHeadless(t, tt.cfg)
			if tt.loadWav {
				h.Load(context.Background(), writeWav(t, time.Second))
			}
			if tt.src != "" {
				h.Load(context.Background(), tt.src)
			}
			if tt.setup != nil {
				tt.setup(h)
			}

			err := h.Play(context.Background())
			require.Error(t, err)
			assert.Equal(t, playback.ErrorPlayRejected, playback.KindOf(err))
		})
	}
}

func TestHeadless_LoadError(t *testing.T) {
	h, rec := newHeadless(t, HeadlessConfig{})

	h.Load(context.Background(), "gopher://example.com/a.mp3")
	require.Eventually(t, func() bool { return rec.has(playback.SignalError) }, 2*time.Second, 5*time.Millisecond)

	sig, _ := rec.find(playback.SignalError)
	require.NotNil(t, sig.Err)
	assert.Equal(t, playback.ErrorSrcNotSupported, sig.Err.Kind)
	_, known := h.Duration()
	assert.False(t, known)
}

func TestHeadless_SetPosition(t *testing.T) {
	h, rec := newHeadless(t, HeadlessConfig{})

	h.SetPosition(time.Second)
	assert.Equal(t, time.Duration(0), h.Position())

	h.Load(context.Background(), writeWav(t, 2*time.Second))
	require.Eventually(t, func() bool { return rec.has(playback.SignalMetadataLoaded) }, 2*time.Second, 5*time.Millisecond)

	tests := []struct {
		name string
		to   time.Duration
		want time.Duration
	}{
		{name: "inside", to: 500 * time.Millisecond, want: 500 * time.Millisecond},
		{name: "negative", to: -time.Second, want: 0},
		{name: "past end", to: 5 * time.Second, want: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.SetPosition(tt.to)
			assert.Equal(t, tt.want, h.Position())
		})
	}
}

func TestHeadless_SubscribeAndClose(t *testing.T) {
	h := NewHeadlessHandle(HeadlessConfig{TimeUpdateMs: 20})

	unsubscribe := h.Subscribe(func(playback.Signal) {})
	h.Subscribe(func(playback.Signal) {})
	assert.Equal(t, 2, h.Subscribers())

	unsubscribe()
	assert.Equal(t, 1, h.Subscribers())

	h.SetVolume(0.4)
	assert.Equal(t, 0.4, h.Volume())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestApplyGain(t *testing.T) {
	tests := []struct {
		name       string
		gain       float64
		wantVolume float64
		wantSilent bool
	}{
		{name: "unity", gain: 1, wantVolume: 0},
		{name: "half", gain: 0.5, wantVolume: -1},
		{name: "quarter", gain: 0.25, wantVolume: -2},
		{name: "muted", gain: 0, wantSilent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &effects.Volume{Base: 2}
			applyGain(v, tt.gain)
			assert.Equal(t, tt.wantSilent, v.Silent)
			assert.InDelta(t, tt.wantVolume, v.Volume, 1e-9)
		})
	}
}
