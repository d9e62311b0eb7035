package upload

import "math"

// batchProgress is the aggregate percentage while file i of n is in flight
// with fraction f done: round(100*i/n + f*100/n).
func batchProgress(i, n int, f float64) int {
	if n <= 0 {
		return 0
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return int(math.Round(100*float64(i)/float64(n) + f*100/float64(n)))
}

// completedProgress is the corrective value once files 0..i are done.
func completedProgress(i, n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(i+1) / float64(n)))
}

// fraction converts a byte count into [0,1]. Unknown totals report 0
// until the corrective snapshot lands.
func fraction(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}
