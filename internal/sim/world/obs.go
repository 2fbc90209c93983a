package world

import (
	"encoding/json"
	"math"

	"pointcraft.ai/internal/protocol"
)

func (w *World) buildObs(a *Agent, nowTick uint64) ([]byte, error) {
	t := w.cfg.Tuning

	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		AgentID:         a.ID,
		Self: protocol.SelfObs{
			Pos:      [3]float64{a.Pos.X, a.Pos.Y, a.Pos.Z},
			Yaw:      a.Yaw,
			Captured: a.EpCaptured,
			Visited:  a.EpVisited(),
		},
		Episode: w.episode,
		Events:  a.DrainEvents(),
	}
	for _, id := range a.Claimant.Held() {
		obs.Self.Held = append(obs.Self.Held, int(id))
	}

	for _, id := range w.registry.IDs() {
		p, _ := w.registry.Get(id)
		obs.Points = append(obs.Points, protocol.PointObs{
			ID:     int(id),
			Pos:    [3]float64{p.Pos.X, p.Pos.Y, p.Pos.Z},
			Owner:  p.Owner,
			Active: p.ActiveClaimant != "",
		})
	}

	obs.Scores = w.Scores()
	obs.NavGrid = w.navGrid(a.Pos, t.NavGridSize)
	obs.NearestUnclaimed, obs.NearestEnemy = w.objectiveDistances(a)

	if t.EpisodeTicks > 0 {
		elapsed := float64(nowTick - w.episodeStart)
		rem := 1 - elapsed/float64(t.EpisodeTicks)
		if rem < 0 {
			rem = 0
		}
		obs.TimeRemaining = rem
	}

	return json.Marshal(obs)
}

// navGrid samples walkability at 1-unit offsets centered on pos, row-major
// (z outer, x inner): 0 walkable, 1 wall or out of bounds.
func (w *World) navGrid(pos Vec3, size int) []int {
	grid := make([]int, 0, size*size)
	half := size / 2
	for dz := -half; dz <= half; dz++ {
		for dx := -half; dx <= half; dx++ {
			if w.level.Walkable(pos.X+float64(dx), pos.Z+float64(dz), w.cfg.Tuning.ActorRadius) {
				grid = append(grid, 0)
			} else {
				grid = append(grid, 1)
			}
		}
	}
	return grid
}

// objectiveDistances returns distances to the nearest unclaimed point and the
// nearest point owned by a rival, both normalized by map size and clamped to
// 1.0 (1.0 = none exists).
func (w *World) objectiveDistances(a *Agent) (unclaimed, enemy float64) {
	minUnclaimed := math.Inf(1)
	minEnemy := math.Inf(1)
	for _, id := range w.registry.IDs() {
		p, _ := w.registry.Get(id)
		d := a.Pos.DistXZ(p.Pos)
		switch {
		case p.Owner == "":
			if d < minUnclaimed {
				minUnclaimed = d
			}
		case p.Owner != a.ID:
			if d < minEnemy {
				minEnemy = d
			}
		}
	}
	norm := func(d float64) float64 {
		if math.IsInf(d, 1) {
			return 1
		}
		v := d / float64(w.cfg.Tuning.MapSize)
		if v > 1 {
			return 1
		}
		return v
	}
	return norm(minUnclaimed), norm(minEnemy)
}
