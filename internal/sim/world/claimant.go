package world

import "errors"

var (
	// ErrAtCapacity means Acquire was called on a full claimant without a
	// prior EvictOldest. The resolver is structured so this cannot happen;
	// seeing it is a logic bug, never a normal runtime condition.
	ErrAtCapacity = errors.New("claimant at capacity")

	ErrNothingHeld = errors.New("claimant holds no points")
)

// Claimant is the per-actor bookkeeping side of the protocol: an ordered,
// capacity-bounded list of held point ids (insertion order = acquisition
// order) plus a membership set kept in lockstep.
type Claimant struct {
	ID       string
	Capacity int

	held    []PointID
	heldSet map[PointID]struct{}
}

func NewClaimant(id string, capacity int) *Claimant {
	return &Claimant{
		ID:       id,
		Capacity: capacity,
		heldSet:  make(map[PointID]struct{}, capacity),
	}
}

func (c *Claimant) IsHolding(id PointID) bool {
	_, ok := c.heldSet[id]
	return ok
}

func (c *Claimant) HeldCount() int { return len(c.held) }

// Held returns the held ids oldest-first. The slice is a copy.
func (c *Claimant) Held() []PointID {
	out := make([]PointID, len(c.held))
	copy(out, c.held)
	return out
}

// Acquire appends id to the held list. The caller must have made room first;
// acquiring while full is an error, not an implicit eviction. Re-acquiring an
// already-held id is a no-op.
func (c *Claimant) Acquire(id PointID) error {
	if c.IsHolding(id) {
		return nil
	}
	if len(c.held) >= c.Capacity {
		return ErrAtCapacity
	}
	c.held = append(c.held, id)
	c.heldSet[id] = struct{}{}
	return nil
}

// EvictOldest removes and returns the front of the held list, the canonical
// FIFO victim. Registry ownership of the evicted point is deliberately NOT
// touched: eviction frees a capacity slot, it does not un-capture the point.
func (c *Claimant) EvictOldest() (PointID, error) {
	if len(c.held) == 0 {
		return 0, ErrNothingHeld
	}
	id := c.held[0]
	c.held = c.held[1:]
	delete(c.heldSet, id)
	return id, nil
}

// Release drops id from the held list without touching registry ownership.
// Reports whether the id was held.
func (c *Claimant) Release(id PointID) bool {
	if !c.IsHolding(id) {
		return false
	}
	delete(c.heldSet, id)
	for i, h := range c.held {
		if h == id {
			c.held = append(c.held[:i], c.held[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the held list (episode reset / despawn).
func (c *Claimant) Clear() {
	c.held = c.held[:0]
	for id := range c.heldSet {
		delete(c.heldSet, id)
	}
}
