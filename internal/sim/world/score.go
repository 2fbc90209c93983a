package world

import (
	"fmt"

	"pointcraft.ai/internal/protocol"
)

// ScoreOf is the claimant's score: the count of registry entries it owns.
// The registry, not the held list, is the source of truth - an evicted point
// still counts until someone else takes it.
func (w *World) ScoreOf(agentID string) int {
	return w.registry.OwnedBy(agentID)
}

// Scores returns every claimant's score in registration order.
func (w *World) Scores() []protocol.ScoreObs {
	out := make([]protocol.ScoreObs, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, protocol.ScoreObs{AgentID: id, Score: w.registry.OwnedBy(id)})
	}
	return out
}

// CheckConsistency verifies the cross-structure invariants. It is the state
// drift detector the tests run after every step:
//
//   - every held id is owned by its holder in the registry
//   - no two claimants hold the same id
//   - held count never exceeds capacity
//   - a non-empty active claimant always equals the owner
//   - a non-neutral owner references a live claimant
func (w *World) CheckConsistency() error {
	holders := map[PointID]string{}
	for _, id := range w.order {
		a := w.agents[id]
		c := a.Claimant
		if c.HeldCount() > c.Capacity {
			return fmt.Errorf("claimant %s over capacity: %d > %d", id, c.HeldCount(), c.Capacity)
		}
		for _, pid := range c.Held() {
			if prev, ok := holders[pid]; ok {
				return fmt.Errorf("point %d held by both %s and %s", pid, prev, id)
			}
			holders[pid] = id
			p, err := w.registry.Get(pid)
			if err != nil {
				return fmt.Errorf("claimant %s holds unknown point %d", id, pid)
			}
			if p.Owner != id {
				return fmt.Errorf("claimant %s holds point %d owned by %q", id, pid, p.Owner)
			}
		}
	}
	for _, pid := range w.registry.IDs() {
		p, _ := w.registry.Get(pid)
		if p.ActiveClaimant != "" && p.ActiveClaimant != p.Owner {
			return fmt.Errorf("point %d active claimant %q != owner %q", pid, p.ActiveClaimant, p.Owner)
		}
		if p.Owner != "" {
			if _, ok := w.agents[p.Owner]; !ok {
				return fmt.Errorf("point %d owned by departed claimant %q", pid, p.Owner)
			}
		}
	}
	return nil
}
