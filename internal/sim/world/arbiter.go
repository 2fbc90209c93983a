package world

// TickArbiter is the per-tick scratch map preventing two claimants from newly
// acquiring the same point within one pass. It records reaffirmed live claims
// as well as new acquisitions, so a direct-hit attempt against an
// actively-watched point is rejected by the same lookup.
//
// Reset at every tick boundary; never read or written outside the current
// tick's resolver pass.
type TickArbiter struct {
	taken map[PointID]string
}

func NewTickArbiter() *TickArbiter {
	return &TickArbiter{taken: map[PointID]string{}}
}

func (a *TickArbiter) Reset() {
	for id := range a.taken {
		delete(a.taken, id)
	}
}

// Holder reports which claimant has the point for this tick, if any.
func (a *TickArbiter) Holder(id PointID) (string, bool) {
	c, ok := a.taken[id]
	return c, ok
}

// Record marks the point as taken by claimant for the rest of the tick.
// Reports false, without overwriting, when a different claimant got there
// first.
func (a *TickArbiter) Record(id PointID, claimant string) bool {
	if cur, ok := a.taken[id]; ok && cur != claimant {
		return false
	}
	a.taken[id] = claimant
	return true
}
