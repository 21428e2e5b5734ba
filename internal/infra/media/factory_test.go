package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/infra/config"
)

func TestNew_Headless(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		settings map[string]any
		want     HeadlessConfig
	}{
		{
			name: "defaults",
			typ:  OutputHeadless,
			want: HeadlessConfig{TimeUpdateMs: 250, HTTPTimeoutMs: 15000},
		},
		{
			name:     "alias with settings",
			typ:      "headless",
			settings: map[string]any{"time_update_ms": 100, "reject_play": true},
			want:     HeadlessConfig{TimeUpdateMs: 100, HTTPTimeoutMs: 15000, RejectPlay: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(config.OutputConfig{Type: tt.typ, Settings: tt.settings})
			require.NoError(t, err)
			defer h.Close()

			hh, ok := h.(*HeadlessHandle)
			require.True(t, ok)
			assert.Equal(t, tt.want, hh.config)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.OutputConfig
		errMsg string
	}{
		{
			name:   "unknown type",
			cfg:    config.OutputConfig{Type: "pulse"},
			errMsg: "unsupported output type",
		},
		{
			name:   "out of range",
			cfg:    config.OutputConfig{Type: OutputHeadless, Settings: map[string]any{"time_update_ms": 1}},
			errMsg: "invalid headless settings",
		},
		{
			name:   "wrong type",
			cfg:    config.OutputConfig{Type: OutputHeadless, Settings: map[string]any{"reject_play": "sometimes"}},
			errMsg: "invalid headless settings",
		},
		{
			name:   "speaker out of range",
			cfg:    config.OutputConfig{Type: OutputSpeaker, Settings: map[string]any{"sample_rate": 10}},
			errMsg: "invalid speaker settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, h)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewHeadless_SharesOutputSettings(t *testing.T) {
	settings := map[string]any{
		"sample_rate":     48000,
		"buffer_ms":       100,
		"time_update_ms":  100,
		"http_timeout_ms": 2000,
	}

	h, err := NewHeadless(settings)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, HeadlessConfig{TimeUpdateMs: 100, HTTPTimeoutMs: 2000}, h.config)
	assert.Equal(t, 2*time.Second, h.client.Timeout)
}
