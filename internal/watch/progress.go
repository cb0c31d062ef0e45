// Package watch reconstructs which parts of a media timeline a viewer actually watched from a
// stream of raw playback-position samples, and derives the percentage watched from them.
//
// Everything here is synchronous and allocation-light. A Progress has a single writer: callers
// that share one across goroutines must serialize UpdateProgress themselves.
package watch

import "math"

// Progress is the watch state of one viewer on one media item for one viewing session.
//
// CurrentStart and LastKnownStopPosition bound the open segment, the current unbroken run of
// playback that has not been folded into WatchSegments yet. Both are nil when no run is open.
type Progress struct {
	WatchSegments         []Segment
	CurrentStart          *float64
	LastKnownStopPosition *float64
	CurrentPosition       float64
	TotalWatchTime        float64
	// VideoDuration is math.Inf(1) for streams of unknown length.
	VideoDuration  float64
	PercentWatched int
}

// NewProgress returns an empty record for a session on media of the given duration.
// A duration that is not positive is treated as unknown.
func NewProgress(duration float64) *Progress {
	if !(duration > 0) {
		duration = math.Inf(1)
	}
	return &Progress{VideoDuration: duration}
}

// UpdateProgress folds one playback sample into p.
//
// Samples inside an already watched segment close the open run. Samples elsewhere either rejoin a
// committed segment ending or starting within NeighborWindow, extend the open run, or (after a jump
// larger than DiscontinuityThreshold) commit the open run and start a new one. Totals are only
// recomputed for samples outside the committed segments.
func UpdateProgress(p *Progress, currentTime float64) {
	p.CurrentPosition = currentTime

	// Out-of-order sample behind the open run while scrubbing.
	if p.CurrentStart != nil && p.LastKnownStopPosition != nil &&
		*p.CurrentStart > currentTime && currentTime < *p.LastKnownStopPosition {
		return
	}

	if IsTimeInSegments(p.WatchSegments, currentTime) {
		if p.CurrentStart != nil && *p.CurrentStart >= 0 {
			if p.LastKnownStopPosition != nil {
				p.WatchSegments = AddToSegments(p.WatchSegments, p.openSegment())
			}
			p.CurrentStart = nil
			p.LastKnownStopPosition = nil
		}
		return
	}

	before := indexOf(p.WatchSegments, func(s Segment) bool {
		d := currentTime - s.Stop
		return d > 0 && d < NeighborWindow
	})
	after := indexOf(p.WatchSegments, func(s Segment) bool {
		d := s.Start - currentTime
		return d > 0 && d < NeighborWindow
	})

	switch {
	case before >= 0:
		existing := p.WatchSegments[before]
		var pending *Segment
		if nonZero(p.CurrentStart) && nonZero(p.LastKnownStopPosition) {
			seg := p.openSegment()
			pending = &seg
		}
		p.CurrentStart = ptr(clampStart(existing.Start))
		p.LastKnownStopPosition = ptr(currentTime)
		p.WatchSegments = removeAt(p.WatchSegments, before)
		if pending != nil {
			p.WatchSegments = AddToSegments(p.WatchSegments, *pending)
		}

	case after >= 0:
		existing := p.WatchSegments[after]
		start := clampStart(currentTime)
		if p.CurrentStart != nil {
			start = *p.CurrentStart
		}
		stop := existing.Stop
		if p.LastKnownStopPosition != nil {
			stop = math.Max(stop, *p.LastKnownStopPosition)
		}
		p.CurrentStart = ptr(math.Min(existing.Start, start))
		p.LastKnownStopPosition = ptr(stop)
		p.WatchSegments = removeAt(p.WatchSegments, after)

	default:
		if p.CurrentStart == nil {
			p.CurrentStart = ptr(clampStart(currentTime))
		}
		if p.LastKnownStopPosition != nil &&
			math.Abs(*p.LastKnownStopPosition-currentTime) > DiscontinuityThreshold {
			p.WatchSegments = AddToSegments(p.WatchSegments, p.openSegment())
			p.CurrentStart = ptr(currentTime)
		}
		p.LastKnownStopPosition = ptr(currentTime)
	}

	p.recomputeTotals()
}

// Segments returns the committed segments with the open run folded in. p is not modified.
func (p *Progress) Segments() []Segment {
	if p.CurrentStart == nil || p.LastKnownStopPosition == nil {
		out := make([]Segment, len(p.WatchSegments))
		copy(out, p.WatchSegments)
		return out
	}
	return AddToSegments(p.WatchSegments, p.openSegment())
}

// Clone returns a deep copy of p.
func (p *Progress) Clone() *Progress {
	c := *p
	c.WatchSegments = make([]Segment, len(p.WatchSegments))
	copy(c.WatchSegments, p.WatchSegments)
	if p.CurrentStart != nil {
		c.CurrentStart = ptr(*p.CurrentStart)
	}
	if p.LastKnownStopPosition != nil {
		c.LastKnownStopPosition = ptr(*p.LastKnownStopPosition)
	}
	return &c
}

func (p *Progress) openSegment() Segment {
	start := *p.CurrentStart
	if start < NearZeroClamp {
		start = 0
	}
	return Segment{Start: start, Stop: *p.LastKnownStopPosition}
}

func (p *Progress) recomputeTotals() {
	p.TotalWatchTime = sumDurations(p.WatchSegments) + (*p.LastKnownStopPosition - *p.CurrentStart)

	// Percent is undefined for unknown or empty durations.
	if math.IsInf(p.VideoDuration, 1) || !(p.VideoDuration > 0) {
		return
	}
	if math.Abs(p.VideoDuration-p.TotalWatchTime) < CompletionSnap {
		p.TotalWatchTime = p.VideoDuration
	}
	p.PercentWatched = int(math.Floor(100 * p.TotalWatchTime / p.VideoDuration))
}

// clampStart snaps positions at or below NearZeroClamp to the start of the media.
// Committed segments use a strict bound instead; see openSegment.
func clampStart(t float64) float64 {
	if t > NearZeroClamp {
		return t
	}
	return 0
}

func indexOf(segments []Segment, match func(Segment) bool) int {
	for i, s := range segments {
		if match(s) {
			return i
		}
	}
	return -1
}

func removeAt(segments []Segment, i int) []Segment {
	out := make([]Segment, 0, len(segments)-1)
	out = append(out, segments[:i]...)
	return append(out, segments[i+1:]...)
}

func nonZero(v *float64) bool {
	return v != nil && *v != 0
}

func ptr(v float64) *float64 {
	return &v
}
