package world

import (
	"math/rand"

	"pointcraft.ai/internal/protocol"
)

// Agent pairs a claimant with a viewpoint and a locomotion source. Controlled
// agents move on ACT instants from a websocket client; the rest random-walk
// inside the world loop.
type Agent struct {
	ID   string
	Name string

	Claimant *Claimant

	Pos Vec3
	Yaw float64

	Controlled bool

	// Random-walk state (uncontrolled agents only).
	rng       *rand.Rand
	walkDir   string
	walkTicks int

	// Episode counters, the reward signals the trainer consumes.
	visited     map[PointID]bool
	EpCaptured  int
	pendingFire []float64 // queued FIRE yaws for this tick

	Events []protocol.Event
}

func (a *Agent) AddEvent(ev protocol.Event) {
	a.Events = append(a.Events, ev)
}

// DrainEvents returns and clears the pending event list.
func (a *Agent) DrainEvents() []protocol.Event {
	evs := a.Events
	a.Events = nil
	return evs
}

func (a *Agent) EpVisited() int { return len(a.visited) }

func (a *Agent) markVisited(id PointID) bool {
	if a.visited[id] {
		return false
	}
	a.visited[id] = true
	return true
}

func (a *Agent) resetEpisode(spawn Vec3) {
	a.Pos = spawn
	a.Yaw = 0
	a.Claimant.Clear()
	a.visited = map[PointID]bool{}
	a.EpCaptured = 0
	a.pendingFire = nil
	a.walkDir = ""
	a.walkTicks = 0
}

func actionResult(tick uint64, id string, ok bool, code, msg string) protocol.Event {
	ev := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"id":   id,
		"ok":   ok,
	}
	if code != "" {
		ev["code"] = code
	}
	if msg != "" {
		ev["message"] = msg
	}
	return ev
}
