package playback

// EventType represents a controller event type.
type EventType int

const (
	EventStateChanged    EventType = iota // State or IsPlaying changed
	EventMetadataLoaded                   // Duration became known
	EventPositionChanged                  // CurrentTime changed
	EventVolumeChanged                    // Volume changed
	EventErrorChanged                     // Error message set or cleared
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventMetadataLoaded:
		return "metadata_loaded"
	case EventPositionChanged:
		return "position_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventErrorChanged:
		return "error_changed"
	default:
		return "unknown"
	}
}

// Event represents a controller event.
type Event struct {
	Type     EventType
	Snapshot Snapshot // State right after the change
}
