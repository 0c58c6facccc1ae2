package segment

import "fmt"

// FormatTimestamp renders a frame offset as HH:MM:SS.001 with whole-second
// resolution. Negative offsets render as the zero timestamp.
func FormatTimestamp(frame, sampleRate int) string {
	if frame < 0 || sampleRate <= 0 {
		frame = 0
	}
	total := 0
	if sampleRate > 0 {
		total = frame / sampleRate
	}
	h := total / 3600
	m := (total / 60) % 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d.001", h, m, s)
}

// FormatClock renders seconds as H:M:S without padding, e.g. "0:1:5".
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%d:%d", total/3600, (total/60)%60, total%60)
}
