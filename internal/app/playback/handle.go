package playback

import (
	"context"
	"time"
)

// SignalType represents a media handle lifecycle signal.
type SignalType int

const (
	SignalMetadataLoaded SignalType = iota // Duration is known
	SignalTimeUpdate                       // Position advanced
	SignalPlay                             // Playback started
	SignalPause                            // Playback paused
	SignalEnded                            // End of resource reached
	SignalError                            // Load or decode failure
)

// String returns the string representation of the signal type.
func (s SignalType) String() string {
	switch s {
	case SignalMetadataLoaded:
		return "loadedmetadata"
	case SignalTimeUpdate:
		return "timeupdate"
	case SignalPlay:
		return "play"
	case SignalPause:
		return "pause"
	case SignalEnded:
		return "ended"
	case SignalError:
		return "error"
	default:
		return "unknown"
	}
}

// Signal is emitted by a Handle to its subscribers.
type Signal struct {
	Type     SignalType
	Position time.Duration // Set for SignalTimeUpdate
	Duration time.Duration // Set for SignalMetadataLoaded
	Err      *MediaError   // Set for SignalError
}

// Handle is the media playback primitive a Controller drives.
// Implementations must not deliver signals while holding locks that
// Play, Pause, or SetPosition also take.
type Handle interface {
	// Load starts loading src. The outcome is reported with
	// SignalMetadataLoaded or SignalError.
	Load(ctx context.Context, src string)
	// Play requests playback. A non-nil error means the request was rejected.
	Play(ctx context.Context) error
	Pause()
	Position() time.Duration
	SetPosition(d time.Duration)
	// Duration returns the track length and whether it is known yet.
	Duration() (time.Duration, bool)
	Volume() float64
	SetVolume(v float64)
	// Subscribe registers fn for every signal and returns its release function.
	Subscribe(fn func(Signal)) (unsubscribe func())
	Close() error
}
