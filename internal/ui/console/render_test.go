package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/19deck/internal/app/playback"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		snap  playback.Snapshot
		width int
		want  string
	}{
		{
			name: "playing",
			snap: playback.Snapshot{
				IsPlaying: true, IsLoaded: true, Volume: 0.7,
				CurrentTime: 45 * time.Second, Duration: 3 * time.Minute, DurationKnown: true,
			},
			width: 20,
			want:  "[▶] 00:45 [=====---------------] 03:00  vol [#######---] 70%",
		},
		{
			name: "paused with loop",
			snap: playback.Snapshot{
				IsLoaded: true, Volume: 1, Loop: true,
				CurrentTime: 3 * time.Minute, Duration: 3 * time.Minute, DurationKnown: true,
			},
			width: 10,
			want:  "[⏸] 03:00 [==========] 03:00  vol [##########] 100%  loop",
		},
		{
			name:  "unknown duration uses the fallback range",
			snap:  playback.Snapshot{Volume: 0.7, CurrentTime: 50 * time.Second},
			width: 10,
			want:  "[⏸] 00:50 [=====-----] 00:00  vol [#######---] 70%  (disabled)",
		},
		{
			name:  "narrow width is widened",
			snap:  playback.Snapshot{IsLoaded: true, Duration: time.Minute, DurationKnown: true},
			width: 2,
			want:  "[⏸] 00:00 [----------] 01:00  vol [----------] 0%",
		},
		{
			name: "error banner",
			snap: playback.Snapshot{
				State: playback.StateErrored, Volume: 0.5,
				Error: "Network error, unable to load audio",
			},
			width: 10,
			want:  "! Network error, unable to load audio\n[⏸] 00:00 [----------] 00:00  vol [#####-----] 50%  (disabled)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.snap, tt.width))
		})
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{fraction: -1, want: "[----]"},
		{fraction: 0.5, want: "[==--]"},
		{fraction: 3, want: "[====]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bar(tt.fraction, 4, '=', '-'))
	}
}
