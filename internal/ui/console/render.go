package console

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/osa030/19deck/internal/app/playback"
)

const (
	// MinBarWidth is the narrowest seek bar Render draws.
	MinBarWidth = 10
	// UnknownSeekRange is the seek bar range before the duration is known.
	UnknownSeekRange = 100 * time.Second

	volumeBarWidth = 10
)

// Render draws the error banner, if any, and the transport line.
func Render(s playback.Snapshot, width int) string {
	if width < MinBarWidth {
		width = MinBarWidth
	}

	var b strings.Builder
	if s.Error != "" {
		fmt.Fprintf(&b, "! %s\n", s.Error)
	}

	icon := "[⏸]"
	if s.IsPlaying {
		icon = "[▶]"
	}

	b.WriteString(icon)
	b.WriteString(" ")
	b.WriteString(playback.FormatDuration(s.CurrentTime))
	b.WriteString(" ")
	b.WriteString(bar(seekFraction(s), width, '=', '-'))
	b.WriteString(" ")
	b.WriteString(playback.FormatDuration(s.Duration))
	fmt.Fprintf(&b, "  vol %s %d%%", bar(s.Volume, volumeBarWidth, '#', '-'), int(math.Round(s.Volume*100)))

	if s.Loop {
		b.WriteString("  loop")
	}
	if !s.ControlsEnabled() {
		b.WriteString("  (disabled)")
	}
	return b.String()
}

// seekFraction places the position on [0, duration], or on [0, 100s] while
// the duration is unknown.
func seekFraction(s playback.Snapshot) float64 {
	span := UnknownSeekRange
	if s.DurationKnown && s.Duration > 0 {
		span = s.Duration
	}
	return float64(s.CurrentTime) / float64(span)
}

func bar(fraction float64, width int, fill, empty rune) string {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(math.Round(fraction * float64(width)))
	return "[" + strings.Repeat(string(fill), filled) + strings.Repeat(string(empty), width-filled) + "]"
}
