// Package segment splits PCM audio into clips separated by silence.
//
// The pipeline is a chain of lazy sequences: per-window energy, a
// silent/non-silent classification, rising-edge detection, cut points in
// samples and finally segments with their timestamps. Only the last stage
// needs the whole buffer; every other stage holds a single window.
package segment

import "fmt"

// SampleBuffer holds decoded PCM samples. Samples are interleaved when
// Channels is greater than one; positions used by the pipeline count frames.
// A SampleBuffer must not be modified after construction.
type SampleBuffer struct {
	Samples      []int
	SampleRate   int
	Channels     int
	MaxAmplitude int
}

// NewSampleBuffer validates the format parameters and wraps samples.
// A channel count of zero is treated as mono.
func NewSampleBuffer(samples []int, sampleRate, channels, maxAmplitude int) (*SampleBuffer, error) {
	if channels == 0 {
		channels = 1
	}
	b := &SampleBuffer{
		Samples:      samples,
		SampleRate:   sampleRate,
		Channels:     channels,
		MaxAmplitude: maxAmplitude,
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *SampleBuffer) validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, b.SampleRate)
	}
	if b.Channels <= 0 {
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, b.Channels)
	}
	if b.MaxAmplitude <= 0 {
		return fmt.Errorf("%w: max amplitude %d", ErrInvalidConfig, b.MaxAmplitude)
	}
	return nil
}

// Frames returns the number of sample frames in the buffer.
func (b *SampleBuffer) Frames() int {
	return len(b.Samples) / b.Channels
}

// Slice returns the samples of frames [start, end) without copying.
func (b *SampleBuffer) Slice(start, end int) []int {
	return b.Samples[start*b.Channels : end*b.Channels]
}

// Seconds converts a frame offset to seconds.
func (b *SampleBuffer) Seconds(frame int) float64 {
	return float64(frame) / float64(b.SampleRate)
}
