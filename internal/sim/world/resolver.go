package world

import (
	"errors"
	"log"
)

// Resolver runs the per-claimant claim pass. One instance is shared by all
// claimants; per-tick cross-claimant state lives in the TickArbiter.
type Resolver struct {
	Registry *PointRegistry
	Oracle   VisibilityOracle
	Walls    []Wall

	// Log receives ownership-conflict diagnostics. May be nil.
	Log *log.Logger
}

// ResolveResult reports what one claimant's pass changed.
type ResolveResult struct {
	Visible   []PointID
	Acquired  []PointID
	Evicted   []PointID
	Stale     []PointID // held, sight lost this tick (active claim released)
	Conflicts []PointID // dropped by the consistency check
}

// ResolveTick runs the fixed-order claim pass for one claimant:
//
//  1. consistency check against the registry (self-heal, drop stale entries)
//  2. visibility scan, excluding points behind another claimant's live claim
//  3. release active claims on held points no longer visible
//  4. reaffirm held-and-visible points (recorded in the arbiter)
//  5. acquire newly visible points, evicting the oldest when at capacity
//
// Claimants must be resolved in their registration order within a tick; the
// arbiter makes the first to reach step 5 win a contested point.
func (r *Resolver) ResolveTick(c *Claimant, viewpoint Vec3, arb *TickArbiter, tick uint64) ResolveResult {
	var res ResolveResult

	// 1. Self-heal: the registry is authoritative. A held id whose owner is
	// not us means ownership was changed externally; drop it locally instead
	// of compounding the disagreement.
	for _, id := range c.Held() {
		p, err := r.Registry.Get(id)
		if err != nil || p.Owner != c.ID {
			c.Release(id)
			res.Conflicts = append(res.Conflicts, id)
			if r.Log != nil {
				r.Log.Printf("ownership conflict: claimant=%s point=%d resynced", c.ID, id)
			}
		}
	}

	// 2. Visibility scan in stable point order.
	visSet := make(map[PointID]struct{})
	for _, id := range r.Registry.IDs() {
		p, _ := r.Registry.Get(id)
		if r.contested(p, c.ID, arb) {
			continue
		}
		if !r.Oracle.LineOfSight(viewpoint, p.Pos, r.Walls) {
			continue
		}
		visSet[id] = struct{}{}
		res.Visible = append(res.Visible, id)
	}

	// 3. Release stale active claims. Ownership stays.
	for _, id := range c.Held() {
		if _, ok := visSet[id]; ok {
			continue
		}
		if err := r.Registry.ClearActive(id); err != nil {
			continue
		}
		res.Stale = append(res.Stale, id)
	}

	// 4. Reaffirm held-and-visible. Registry state is already correct; the
	// arbiter record is what keeps the point untakeable for the rest of the
	// tick.
	for _, id := range res.Visible {
		if c.IsHolding(id) {
			arb.Record(id, c.ID)
		}
	}

	// 5. Acquire the rest. Capacity is read from the live held list at each
	// attempt, never from a count taken before the loop.
	for _, id := range res.Visible {
		if c.IsHolding(id) {
			continue
		}
		if holder, ok := arb.Holder(id); ok && holder != c.ID {
			continue // someone else got there first this tick
		}
		if c.HeldCount() == c.Capacity {
			victim, err := c.EvictOldest()
			if err != nil {
				break
			}
			res.Evicted = append(res.Evicted, victim)
			// The victim stays owned; it is just no longer watched.
			_ = r.Registry.ClearActive(victim)
		}
		if err := c.Acquire(id); err != nil {
			// Cannot legitimately occur (room was just made). Treat as
			// unrecoverable for this claimant's tick.
			if r.Log != nil {
				r.Log.Printf("acquire failed: claimant=%s point=%d err=%v", c.ID, id, err)
			}
			break
		}
		// TransferOwner fires the owner-change hook; the previous holder's
		// slot is freed there. Step 1 remains as a resync of last resort.
		if err := r.Registry.TransferOwner(id, c.ID, tick); err != nil {
			c.Release(id)
			break
		}
		arb.Record(id, c.ID)
		res.Acquired = append(res.Acquired, id)
	}

	return res
}

// contested reports whether the point is owned by a different claimant whose
// live claim still stands: either the arbiter already records the owner this
// tick (owner resolved earlier in the pass), or the registry's active field
// still names the owner (owner not yet resolved; the field persists from the
// previous tick until the owner's own release step clears it). Such points
// never enter the visible set - the only path to taking them is the holder
// losing sight in a later tick.
func (r *Resolver) contested(p *CriticalPoint, claimant string, arb *TickArbiter) bool {
	if p.Owner == "" || p.Owner == claimant {
		return false
	}
	if holder, ok := arb.Holder(p.ID); ok && holder == p.Owner {
		return true
	}
	return p.ActiveClaimant == p.Owner
}

var (
	errBeamMiss      = errors.New("beam hit nothing")
	errBeamContested = errors.New("point actively claimed this tick")
)

// ResolveBeam is the direct-hit acquisition path: a single successful hit
// captures the point, no sustained visibility required. It shares the
// capacity/FIFO machinery and the arbiter with the visibility path, so it is
// ordered relative to it by the same claimant ordering.
func (r *Resolver) ResolveBeam(c *Claimant, origin Vec3, yaw float64, rangeLimit, tolerance float64, arb *TickArbiter, tick uint64) (ResolveResult, error) {
	var res ResolveResult

	id, ok := r.beamTarget(origin, yaw, rangeLimit, tolerance)
	if !ok {
		return res, errBeamMiss
	}
	p, err := r.Registry.Get(id)
	if err != nil {
		return res, err
	}
	if r.contested(p, c.ID, arb) {
		return res, errBeamContested // the holder keeps it this tick
	}
	if holder, ok := arb.Holder(id); ok && holder != c.ID {
		return res, errBeamContested
	}
	if c.IsHolding(id) {
		arb.Record(id, c.ID)
		return res, nil // already ours and now reaffirmed
	}

	if c.HeldCount() == c.Capacity {
		victim, err := c.EvictOldest()
		if err != nil {
			return res, err
		}
		res.Evicted = append(res.Evicted, victim)
		_ = r.Registry.ClearActive(victim)
	}
	if err := c.Acquire(id); err != nil {
		return res, err
	}
	if err := r.Registry.TransferOwner(id, c.ID, tick); err != nil {
		c.Release(id)
		return res, err
	}
	arb.Record(id, c.ID)
	res.Acquired = append(res.Acquired, id)
	return res, nil
}

// beamTarget finds the nearest point within tolerance of the ray that is not
// blocked by a wall closer than the point.
func (r *Resolver) beamTarget(origin Vec3, yaw float64, rangeLimit, tolerance float64) (PointID, bool) {
	dir := YawDir(yaw)

	best := PointID(0)
	bestT := rangeLimit
	found := false
	for _, id := range r.Registry.IDs() {
		p, _ := r.Registry.Get(id)
		t, d := distPointToRayXZ(origin, dir, p.Pos)
		if t < 0 || t > bestT || d > tolerance {
			continue
		}
		// A wall between origin and the closest approach blocks the beam.
		impact := origin.Add(dir.Scale(t))
		if !r.Oracle.LineOfSight(origin, impact, r.Walls) {
			continue
		}
		best, bestT, found = id, t, true
	}
	return best, found
}
