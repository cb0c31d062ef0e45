package watch

import "sort"

// Segment is a closed range of the media timeline, in seconds, that has been watched.
type Segment struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
}

// Duration returns Stop - Start.
func (s Segment) Duration() float64 {
	return s.Stop - s.Start
}

// IsTimeInSegments reports whether t falls inside any of segments, within PointTolerance.
func IsTimeInSegments(segments []Segment, t float64) bool {
	for _, s := range segments {
		if lessOrEqual(s.Start, t) && lessOrEqual(t, s.Stop) {
			return true
		}
	}
	return false
}

// AddToSegments returns a new list with seg merged into segments. The input is not modified.
//
// seg widens the first segment it overlaps or covers, or is appended when it touches none.
// The result is then sorted by start and swept once, left to right, joining neighbours whose gap
// is under MergeTolerance. A single sweep does not always reach a fixed point; callers get exactly
// one pass.
func AddToSegments(segments []Segment, seg Segment) []Segment {
	work := make([]Segment, len(segments), len(segments)+1)
	copy(work, segments)

	found := -1
	for i := range work {
		if DoesOverlap(work[i], seg) || DoesCover(work[i], seg) {
			found = i
			break
		}
	}

	if found >= 0 {
		e := &work[found]
		if !IsWithin(*e, seg) {
			if seg.Start < e.Start {
				e.Start = seg.Start
			}
			if seg.Stop > e.Stop {
				e.Stop = seg.Stop
			}
		}
	} else {
		work = append(work, seg)
	}

	sort.SliceStable(work, func(i, j int) bool { return work[i].Start < work[j].Start })

	out := make([]Segment, 0, len(work))
	for _, item := range work {
		if n := len(out); n > 0 && IsLessOrEqual(item.Start, out[n-1].Stop, MergeTolerance) {
			out[n-1].Stop = item.Stop
			continue
		}
		out = append(out, item)
	}
	return out
}

func sumDurations(segments []Segment) float64 {
	total := 0.0
	for _, s := range segments {
		total += s.Duration()
	}
	return total
}
