package conflict

// Span is the shared part of two overlapping intervals.
type Span struct {
	Start  int `json:"startMin"`
	End    int `json:"endMin"`
	Length int `json:"minutes"`
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect. Both intervals must be on
// the same day.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// OverlapSpan returns the intersection of two intervals. Only meaningful when Overlaps is true.
func OverlapSpan(aStart, aEnd, bStart, bEnd int) Span {
	start := max(aStart, bStart)
	end := min(aEnd, bEnd)
	return Span{Start: start, End: end, Length: end - start}
}
