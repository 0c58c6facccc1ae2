package segment

import "fmt"

// Result is the outcome of splitting one buffer.
type Result struct {
	// Segments are ordered by Index.
	Segments []Segment
	// Cuts are the frame offsets of segment starts, ending with Sentinel.
	Cuts []int
	// Warnings hold per-segment problems that were recovered from.
	Warnings []error
	// WindowSize and StepSize are the frame counts used for windowing.
	WindowSize int
	StepSize   int
	// Duration is the length of the input in seconds.
	Duration float64
}

// TimeRanges maps each segment ordinal to its [start, end] timestamps.
func (r *Result) TimeRanges() map[string][2]string {
	return TimeRanges(r.Segments)
}

// Split runs the full pipeline on buf. Configuration problems and inputs
// no longer than a single window are returned as errors before any window
// is computed.
func Split(buf *SampleBuffer, cfg WindowConfig) (*Result, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrInvalidConfig)
	}
	if err := buf.validate(); err != nil {
		return nil, err
	}
	w, err := cfg.Windowing(buf.SampleRate)
	if err != nil {
		return nil, err
	}

	frames := buf.Frames()
	if frames == 0 {
		return nil, fmt.Errorf("%w: buffer has no samples", ErrEmptyInput)
	}
	if frames <= w.Size() {
		return nil, fmt.Errorf("%w: %d frames do not extend past a window of %d", ErrEmptyInput, frames, w.Size())
	}

	energies, err := Energies(buf, w)
	if err != nil {
		return nil, err
	}
	loud, err := Classify(energies, MaxEnergy(buf.MaxAmplitude), cfg.SilenceThreshold)
	if err != nil {
		return nil, err
	}
	cuts := CutPoints(RisingEdges(loud), cfg.StepDuration, buf.SampleRate)

	segments, warnings, err := Emit(buf, cuts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Segments:   segments,
		Cuts:       cuts,
		Warnings:   warnings,
		WindowSize: w.Size(),
		StepSize:   w.Step(),
		Duration:   buf.Seconds(frames),
	}, nil
}
