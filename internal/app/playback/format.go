package playback

import (
	"fmt"
	"math"
	"time"
)

// zeroTime is shown when the time is not a usable number.
const zeroTime = "00:00"

// FormatTime formats seconds as MM:SS. Minutes are not capped at 59.
// NaN, infinite, and negative inputs yield "00:00".
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return zeroTime
	}
	minutes := int64(math.Floor(seconds / 60))
	secs := int64(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// FormatDuration formats d as MM:SS.
func FormatDuration(d time.Duration) string {
	return FormatTime(d.Seconds())
}
