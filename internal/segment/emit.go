package segment

import (
	"fmt"
	"strconv"
)

// Segment is one output clip. StartSample and EndSample are frame offsets
// delimiting [StartSample, EndSample). Samples aliases the source buffer and
// must be treated as read-only.
type Segment struct {
	Index       int    `json:"index"`
	StartSample int    `json:"start_sample"`
	EndSample   int    `json:"end_sample"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Samples     []int  `json:"-"`
}

// Frames returns the segment length in frames.
func (s Segment) Frames() int {
	return s.EndSample - s.StartSample
}

// Emit turns consecutive cut-point pairs into segments. The final cut point
// must be Sentinel, which resolves to the end of buf.
//
// Segments that cannot be sliced are skipped and reported in the returned
// warnings; the error result is reserved for a malformed cut list.
func Emit(buf *SampleBuffer, cuts []int) ([]Segment, []error, error) {
	if len(cuts) == 0 || cuts[len(cuts)-1] != Sentinel {
		return nil, nil, fmt.Errorf("%w: cut points must end with the sentinel", ErrInvalidConfig)
	}

	frames := buf.Frames()
	segments := make([]Segment, 0, len(cuts)-1)
	var warnings []error

	for i := 0; i < len(cuts)-1; i++ {
		start, end := cuts[i], cuts[i+1]
		if end == Sentinel {
			end = frames
		}
		end = min(end, frames)
		if start < 0 {
			warnings = append(warnings, fmt.Errorf("%w: segment %d starts at %d", ErrNegativeCutPoint, i, start))
			start = 0
		}
		if start >= end {
			warnings = append(warnings, fmt.Errorf("%w: segment %d spans [%d, %d)", ErrDegenerateSegment, i, start, end))
			continue
		}

		segments = append(segments, Segment{
			Index:       i,
			StartSample: start,
			EndSample:   end,
			StartTime:   FormatTimestamp(start, buf.SampleRate),
			EndTime:     FormatTimestamp(end, buf.SampleRate),
			Samples:     buf.Slice(start, end),
		})
	}

	return segments, warnings, nil
}

// TimeRanges maps each segment ordinal to its [start, end] timestamps.
func TimeRanges(segments []Segment) map[string][2]string {
	ranges := make(map[string][2]string, len(segments))
	for _, s := range segments {
		ranges[strconv.Itoa(s.Index)] = [2]string{s.StartTime, s.EndTime}
	}
	return ranges
}
