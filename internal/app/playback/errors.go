package playback

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNotLoaded   = errors.New("track not loaded")
	ErrNotMounted  = errors.New("controller not mounted")
	ErrUnmounted   = errors.New("controller unmounted")
	ErrPlayBlocked = errors.New("play request rejected")
)

// ErrorKind classifies media failures.
type ErrorKind int

const (
	ErrorUnknown         ErrorKind = iota // Catch-all
	ErrorAborted                          // Load aborted before completion
	ErrorNetwork                          // Resource could not be fetched
	ErrorDecode                           // Resource is corrupt
	ErrorSrcNotSupported                  // Format cannot be played
	ErrorPlayRejected                     // Play request refused
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorAborted:
		return "aborted"
	case ErrorNetwork:
		return "network"
	case ErrorDecode:
		return "decode"
	case ErrorSrcNotSupported:
		return "src_not_supported"
	case ErrorPlayRejected:
		return "play_rejected"
	default:
		return "unknown"
	}
}

// MediaError is reported by a Handle with SignalError.
type MediaError struct {
	Kind  ErrorKind
	Cause error
}

// NewMediaError wraps cause with the given kind.
func NewMediaError(kind ErrorKind, cause error) *MediaError {
	return &MediaError{Kind: kind, Cause: cause}
}

func (e *MediaError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("media error: %s", e.Kind)
	}
	return fmt.Sprintf("media error: %s: %v", e.Kind, e.Cause)
}

func (e *MediaError) Unwrap() error {
	return e.Cause
}

// KindOf returns the ErrorKind carried by err, or ErrorUnknown.
func KindOf(err error) ErrorKind {
	var me *MediaError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ErrorUnknown
}

// Messages holds the user-facing texts shown in the error banner.
type Messages struct {
	Aborted        string
	Network        string
	Decode         string
	Unsupported    string
	Default        string
	PlaybackFailed string // Manual play request rejected
	AutoplayFailed string // Automatic play request rejected
}

// DefaultMessages returns the built-in English messages.
func DefaultMessages() Messages {
	return Messages{
		Aborted:        "Audio loading was interrupted",
		Network:        "Network error, unable to load audio",
		Decode:         "Audio file is corrupted and cannot be decoded",
		Unsupported:    "This audio format is not supported",
		Default:        "Audio failed to load, check the file path",
		PlaybackFailed: "Playback failed, check the audio file",
		AutoplayFailed: "Autoplay failed, press play to start manually",
	}
}

// ForKind returns the load failure message for kind.
func (m Messages) ForKind(kind ErrorKind) string {
	switch kind {
	case ErrorAborted:
		return m.Aborted
	case ErrorNetwork:
		return m.Network
	case ErrorDecode:
		return m.Decode
	case ErrorSrcNotSupported:
		return m.Unsupported
	case ErrorPlayRejected:
		return m.PlaybackFailed
	default:
		return m.Default
	}
}

// withDefaults fills empty fields from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&m.Aborted, d.Aborted)
	fill(&m.Network, d.Network)
	fill(&m.Decode, d.Decode)
	fill(&m.Unsupported, d.Unsupported)
	fill(&m.Default, d.Default)
	fill(&m.PlaybackFailed, d.PlaybackFailed)
	fill(&m.AutoplayFailed, d.AutoplayFailed)
	return m
}
