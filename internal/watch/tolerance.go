package watch

import "math"

// Tolerances used when comparing sampled playback positions, in seconds.
const (
	// PointTolerance is the slack for point-in-segment and segment-relation checks.
	PointTolerance = 0.2
	// MergeTolerance is the largest gap between two segments that still coalesces them.
	MergeTolerance = 2.0
	// NeighborWindow is how far from a committed segment a sample may land and still rejoin it.
	NeighborWindow = 2.0
	// DiscontinuityThreshold is the jump between consecutive samples that closes the open segment.
	DiscontinuityThreshold = 1.2
	// NearZeroClamp snaps segment starts below this value to 0.
	NearZeroClamp = 1.0
	// CompletionSnap snaps a total this close to the duration onto the duration.
	CompletionSnap = 1.0
)

// IsLessOrEqual reports whether a < b, or a and b are within tol of each other.
func IsLessOrEqual(a, b, tol float64) bool {
	return a < b || math.Abs(a-b) < tol
}

func lessOrEqual(a, b float64) bool {
	return IsLessOrEqual(a, b, PointTolerance)
}

// IsStartWithin reports whether s starts inside existing.
func IsStartWithin(existing, s Segment) bool {
	return lessOrEqual(existing.Start, s.Start) && lessOrEqual(s.Start, existing.Stop)
}

// IsEndWithin reports whether s stops inside existing.
func IsEndWithin(existing, s Segment) bool {
	return lessOrEqual(existing.Start, s.Stop) && lessOrEqual(s.Stop, existing.Stop)
}

// DoesOverlap reports whether either end of s falls inside existing.
func DoesOverlap(existing, s Segment) bool {
	return IsStartWithin(existing, s) || IsEndWithin(existing, s)
}

// DoesCover reports whether s strictly contains existing. No tolerance is applied.
func DoesCover(existing, s Segment) bool {
	return s.Start < existing.Start && s.Stop > existing.Stop
}

// IsWithin reports whether existing already covers all of s.
func IsWithin(existing, s Segment) bool {
	return IsStartWithin(existing, s) && IsEndWithin(existing, s)
}
