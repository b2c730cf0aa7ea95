package training

// PeriodicTrigger decides whether a period boundary has been crossed by a
// monotonically increasing counter. It is stateless: the caller owns the
// last-fired index and stores the advanced value on a hit, so the same
// trigger value can serve any number of independent schedules.
type PeriodicTrigger struct {
	// Period is the counter distance between firings. Zero disables the
	// trigger permanently.
	Period uint64
}

// Crossed reports whether the counter has entered a later period than
// lastIndex and, if so, returns the index to advance to. The integer
// division tolerates counters that advance in uneven increments: the trigger
// fires exactly once per boundary crossed, no matter how unevenly the
// counter moves, and never fires twice for the same period.
func (t PeriodicTrigger) Crossed(seen, lastIndex uint64) (uint64, bool) {
	if t.Period == 0 {
		return lastIndex, false
	}
	candidate := seen / t.Period
	if candidate <= lastIndex {
		return lastIndex, false
	}
	return candidate, true
}
