package ir

// Range is the closed integer interval [Min, Max] inferred for a smi value
// by range analysis, with explicit flags for unbounded ends. A nil *Range
// means nothing is known; query helpers treat nil conservatively.
type Range struct {
	Min, Max               int64
	minUnbound, maxUnbound bool
}

// NewRange returns the bounded interval [min, max].
func NewRange(min, max int64) *Range {
	if min > max {
		min, max = max, min
	}
	return &Range{Min: min, Max: max}
}

// FullRange returns the interval unbounded on both ends.
func FullRange() *Range {
	return &Range{minUnbound: true, maxUnbound: true}
}

func (r *Range) MinIsUnbounded() bool { return r.minUnbound }
func (r *Range) MaxIsUnbounded() bool { return r.maxUnbound }

// IsWithin reports whether every possible value lies in [lo, hi]. A nil
// range proves nothing, so the answer is false.
func (r *Range) IsWithin(lo, hi int64) bool {
	if r == nil || r.minUnbound || r.maxUnbound {
		return false
	}
	return lo <= r.Min && r.Max <= hi
}

// Overlaps reports whether some possible value lies in [lo, hi]. A nil
// range may hold anything, so the answer is true.
func (r *Range) Overlaps(lo, hi int64) bool {
	if r == nil {
		return true
	}
	if !r.minUnbound && r.Min > hi {
		return false
	}
	if !r.maxUnbound && r.Max < lo {
		return false
	}
	return true
}

// ExcludesZero reports whether zero is provably not a possible value.
func (r *Range) ExcludesZero() bool {
	return r != nil && !r.Overlaps(0, 0)
}

// SingleValue reports the unique value of a degenerate range.
func (r *Range) SingleValue() (int64, bool) {
	if r == nil || r.minUnbound || r.maxUnbound || r.Min != r.Max {
		return 0, false
	}
	return r.Min, true
}
