package world

import "pointcraft.ai/internal/protocol"

// Moves are axis-aligned in world space (not yaw-relative); yaw only aims the
// beam. The collision model is try-then-revert: apply the delta, reject the
// move if the resulting circle overlaps a wall.
func (w *World) applyMove(a *Agent, action string) bool {
	next := a.Pos
	speed := w.cfg.Tuning.MoveSpeed
	switch action {
	case protocol.ActMoveForward:
		next.Z -= speed
	case protocol.ActMoveBackward:
		next.Z += speed
	case protocol.ActStrafeLeft:
		next.X -= speed
	case protocol.ActStrafeRight:
		next.X += speed
	case protocol.ActStay:
		return true
	default:
		return false
	}
	if !w.level.Walkable(next.X, next.Z, w.cfg.Tuning.ActorRadius) {
		return false
	}
	a.Pos = next
	return true
}

var walkActions = []string{
	protocol.ActMoveForward,
	protocol.ActMoveBackward,
	protocol.ActStrafeLeft,
	protocol.ActStrafeRight,
}

// stepRandomWalk keeps a direction for a stretch of ticks, re-rolling when the
// stretch expires or the agent runs into a wall.
func (w *World) stepRandomWalk(a *Agent) {
	if a.walkTicks <= 0 || a.walkDir == "" {
		a.walkDir = walkActions[a.rng.Intn(len(walkActions))]
		a.walkTicks = 10 + a.rng.Intn(30)
	}
	a.walkTicks--
	if !w.applyMove(a, a.walkDir) {
		a.walkTicks = 0
	}
}
