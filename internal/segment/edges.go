package segment

import "iter"

// RisingEdges yields the index of every element that is true while the
// element before it was false. The element before the first one is taken
// as false. Input may be unbounded.
func RisingEdges(signal iter.Seq[bool]) iter.Seq[int] {
	return func(yield func(int) bool) {
		previous := false
		index := 0
		for v := range signal {
			if v && !previous {
				if !yield(index) {
					return
				}
			}
			previous = v
			index++
		}
	}
}
