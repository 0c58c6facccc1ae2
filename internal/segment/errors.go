package segment

import "errors"

// Static errors for segmentation.
var (
	// ErrInvalidConfig is returned when window, step, sample rate or
	// normalization parameters are not usable.
	ErrInvalidConfig = errors.New("segment: invalid config")
	// ErrEmptyInput is returned when the buffer is empty or shorter than one window.
	ErrEmptyInput = errors.New("segment: empty input")
	// ErrDegenerateSegment marks a skipped segment whose start is not before its end.
	ErrDegenerateSegment = errors.New("segment: degenerate segment")
	// ErrNegativeCutPoint marks a segment whose start was clamped to the first sample.
	ErrNegativeCutPoint = errors.New("segment: negative cut point")
)
