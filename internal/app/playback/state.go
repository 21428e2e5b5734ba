// Package playback provides the playback controller that mirrors a media handle into observable state.
package playback

import "time"

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // Not mounted yet
	StateLoading              // Source assigned, waiting for metadata
	StateReady                // Metadata loaded, never played
	StatePlaying              // Handle is producing audio
	StatePaused               // Paused by request
	StateEnded                // End of track reached with loop disabled
	StateErrored              // Load or play failure, message is shown
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the controller's observable fields.
type Snapshot struct {
	State         State
	Source        string
	IsPlaying     bool
	IsLoaded      bool
	Volume        float64       // 0.0 - 1.0
	CurrentTime   time.Duration // Clamped to Duration once known
	Duration      time.Duration
	DurationKnown bool
	Error         string // User-facing message, empty when none
	Loop          bool
}

// ControlsEnabled reports whether track-dependent controls (toggle, seek) can be used.
func (s Snapshot) ControlsEnabled() bool {
	return s.IsLoaded
}
