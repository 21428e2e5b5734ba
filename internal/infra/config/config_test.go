package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/app/playback"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "player:\n  source: track.mp3\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "track.mp3", cfg.Player.Source)
	assert.False(t, cfg.Player.AutoPlay)
	assert.False(t, cfg.Player.Loop)
	assert.Nil(t, cfg.Player.Volume)
	assert.Equal(t, playback.DefaultVolume, cfg.InitialVolume())
	assert.Equal(t, 0.05, cfg.Player.VolumeStep)
	assert.Equal(t, "speaker", cfg.Output.Type)
	assert.Equal(t, "Audio loading was interrupted", cfg.Messages.Aborted)
	assert.Equal(t, 30000, cfg.Player.LoadTimeoutMs)
}

func TestLoad_MutedVolumeKept(t *testing.T) {
	path := writeConfig(t, "player:\n  source: track.mp3\n  volume: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.InitialVolume())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
player:
  source: https://example.com/a.ogg
  autoplay: true
  loop: true
  volume: 0.4
output:
  type: none
  settings:
    time_update_ms: 100
messages:
  network: offline
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Player.AutoPlay)
	assert.True(t, cfg.Player.Loop)
	assert.Equal(t, 0.4, cfg.InitialVolume())
	assert.Equal(t, "none", cfg.Output.Type)
	assert.Equal(t, 100, cfg.Output.Settings["time_update_ms"])
	assert.Equal(t, "offline", cfg.GetMessage("network"))
	assert.Equal(t, "Audio file is corrupted and cannot be decoded", cfg.GetMessage("decode"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DECK_SOURCE", "env.wav")
	t.Setenv("DECK_AUTOPLAY", "true")
	t.Setenv("DECK_LOOP", "1")
	t.Setenv("DECK_VOLUME", "0.25")
	t.Setenv("DECK_OUTPUT", "none")
	path := writeConfig(t, "player:\n  source: file.wav\n  volume: 0.9\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env.wav", cfg.Player.Source)
	assert.True(t, cfg.Player.AutoPlay)
	assert.True(t, cfg.Player.Loop)
	assert.Equal(t, 0.25, cfg.InitialVolume())
	assert.Equal(t, "none", cfg.Output.Type)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "volume above range",
			body:   "player:\n  volume: 1.5\n",
			errMsg: "Volume",
		},
		{
			name:   "unknown output",
			body:   "output:\n  type: pulse\n",
			errMsg: "Type",
		},
		{
			name:   "malformed yaml",
			body:   "player: [",
			errMsg: "failed to parse config file",
		},
		{
			name:   "bad env bool",
			body:   "player:\n  source: a.wav\n",
			env:    map[string]string{"DECK_LOOP": "sometimes"},
			errMsg: "DECK_LOOP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "speaker", cfg.Output.Type)
	assert.Equal(t, 0.7, cfg.InitialVolume())

	path := writeConfig(t, "player:\n  loop: true\n")
	cfg, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.True(t, cfg.Player.Loop)
}

func TestConfig_GetMessage(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	tests := []struct {
		code string
		want string
	}{
		{code: "aborted", want: cfg.Messages.Aborted},
		{code: "network", want: cfg.Messages.Network},
		{code: "decode", want: cfg.Messages.Decode},
		{code: "src_not_supported", want: cfg.Messages.Unsupported},
		{code: "play_rejected", want: cfg.Messages.PlaybackFailed},
		{code: "autoplay_failed", want: cfg.Messages.AutoplayFailed},
		{code: "unknown", want: cfg.Messages.DefaultError},
		{code: "", want: cfg.Messages.DefaultError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.GetMessage(tt.code))
			assert.NotEmpty(t, tt.want)
		})
	}
}

func TestMessages_DefaultsFollowPlayback(t *testing.T) {
	path := writeConfig(t, "player:\n  source: track.mp3\nmessages:\n  network: offline\n")

	loaded, err := Load(path)
	require.NoError(t, err)
	def, err := Default()
	require.NoError(t, err)

	want := playback.DefaultMessages()
	for _, cfg := range []*Config{loaded, def} {
		assert.Equal(t, want.Aborted, cfg.Messages.Aborted)
		assert.Equal(t, want.Decode, cfg.Messages.Decode)
		assert.Equal(t, want.Unsupported, cfg.Messages.Unsupported)
		assert.Equal(t, want.Default, cfg.Messages.DefaultError)
		assert.Equal(t, want.PlaybackFailed, cfg.Messages.PlaybackFailed)
		assert.Equal(t, want.AutoplayFailed, cfg.Messages.AutoplayFailed)
	}
	assert.Equal(t, "offline", loaded.Messages.Network)
	assert.Equal(t, want.Network, def.Messages.Network)
}
