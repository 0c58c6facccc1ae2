package segment

import "fmt"

// Default parameters, matching the values offered to users by the splitter.
const (
	DefaultWindowDuration   = 0.6
	DefaultSilenceThreshold = 1e-4

	// stepDivisor derives the step between windows from the window duration.
	stepDivisor = 10.0
)

// WindowConfig describes how energy is smoothed and thresholded.
type WindowConfig struct {
	// WindowDuration is the length of each energy window in seconds.
	WindowDuration float64
	// StepDuration is the offset between consecutive windows in seconds.
	StepDuration float64
	// SilenceThreshold is the normalized energy in [0, 1) at or below which
	// a window counts as silence.
	SilenceThreshold float64
}

// NewWindowConfig returns a config whose step is a tenth of the window.
func NewWindowConfig(windowDuration, silenceThreshold float64) WindowConfig {
	return WindowConfig{
		WindowDuration:   windowDuration,
		StepDuration:     windowDuration / stepDivisor,
		SilenceThreshold: silenceThreshold,
	}
}

// DefaultWindowConfig returns the default window and threshold.
func DefaultWindowConfig() WindowConfig {
	return NewWindowConfig(DefaultWindowDuration, DefaultSilenceThreshold)
}

// Validate checks durations and threshold range.
func (c WindowConfig) Validate() error {
	if !(c.WindowDuration > 0) {
		return fmt.Errorf("%w: window duration %v must be positive", ErrInvalidConfig, c.WindowDuration)
	}
	if !(c.StepDuration > 0) {
		return fmt.Errorf("%w: step duration %v must be positive", ErrInvalidConfig, c.StepDuration)
	}
	if !(c.SilenceThreshold >= 0 && c.SilenceThreshold < 1) {
		return fmt.Errorf("%w: silence threshold %v outside [0, 1)", ErrInvalidConfig, c.SilenceThreshold)
	}
	return nil
}

// Windowing converts the durations to frame counts at the given sample rate.
func (c WindowConfig) Windowing(sampleRate int) (Windowing, error) {
	if err := c.Validate(); err != nil {
		return Windowing{}, err
	}
	if sampleRate <= 0 {
		return Windowing{}, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}
	size := int(c.WindowDuration * float64(sampleRate))
	step := int(c.StepDuration * float64(sampleRate))
	return NewWindowing(size, step)
}

// Windowing is a validated pair of window size and step, both in frames.
// The zero value is invalid and rejected by Energies.
type Windowing struct {
	size int
	step int
}

// NewWindowing returns a Windowing for positive size and step.
func NewWindowing(size, step int) (Windowing, error) {
	if size <= 0 {
		return Windowing{}, fmt.Errorf("%w: window size %d must be positive", ErrInvalidConfig, size)
	}
	if step <= 0 {
		return Windowing{}, fmt.Errorf("%w: step size %d must be positive", ErrInvalidConfig, step)
	}
	return Windowing{size: size, step: step}, nil
}

// Size returns the window length in frames.
func (w Windowing) Size() int { return w.size }

// Step returns the offset between window starts in frames.
func (w Windowing) Step() int { return w.step }

// Count returns how many complete windows fit in frames.
func (w Windowing) Count(frames int) int {
	if w.size <= 0 || w.step <= 0 || frames < w.size {
		return 0
	}
	return (frames-w.size)/w.step + 1
}
