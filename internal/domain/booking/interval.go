package booking

import "time"

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// overlap. A booking ending exactly when another starts does not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
