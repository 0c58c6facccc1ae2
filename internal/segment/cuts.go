package segment

import "iter"

// Sentinel terminates a cut-point list and stands for the end of the buffer.
const Sentinel = -1

// CutPoints converts window indices to frame offsets and appends Sentinel.
// Each index r maps to int(r * stepDuration * sampleRate).
func CutPoints(edges iter.Seq[int], stepDuration float64, sampleRate int) []int {
	var cuts []int
	for r := range edges {
		t := float64(r) * stepDuration
		cuts = append(cuts, int(t*float64(sampleRate)))
	}
	return append(cuts, Sentinel)
}
