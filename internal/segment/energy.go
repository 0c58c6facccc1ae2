package segment

import (
	"fmt"
	"iter"
)

// Energies yields the energy of each complete window of buf: the sum of the
// squares of every sample in the window, across all channels, divided by the
// window length in frames.
// Windows start every w.Step() frames; a trailing window that would run past
// the end of the buffer is dropped. The sequence is computed lazily and
// reads buf only.
func Energies(buf *SampleBuffer, w Windowing) (iter.Seq[float64], error) {
	if w.size <= 0 || w.step <= 0 {
		return nil, fmt.Errorf("%w: window size %d, step size %d", ErrInvalidConfig, w.size, w.step)
	}
	if err := buf.validate(); err != nil {
		return nil, err
	}

	frames := buf.Frames()
	return func(yield func(float64) bool) {
		for start := 0; start+w.size <= frames; start += w.step {
			if !yield(energy(buf.Slice(start, start+w.size), w.size)) {
				return
			}
		}
	}, nil
}

// energy returns the sum of squared samples divided by frames. Squares are
// taken in float64 so full-scale 32-bit samples cannot overflow.
func energy(samples []int, frames int) float64 {
	if frames <= 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return sum / float64(frames)
}

// MaxEnergy returns the energy of a single full-scale sample. Multichannel
// windows sum every channel, so their normalized energy can exceed one.
func MaxEnergy(maxAmplitude int) float64 {
	return energy([]int{maxAmplitude}, 1)
}
