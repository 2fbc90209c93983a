package world

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"pointcraft.ai/internal/protocol"
	"pointcraft.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID     string
	Seed   int64
	Tuning tuning.Tuning
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type RecordedAction struct {
	AgentID string          `json:"agent_id"`
	Act     protocol.ActMsg `json:"act"`
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

type CaptureRecord struct {
	Tick    uint64 `json:"tick"`
	Episode int    `json:"episode"`
	Point   int    `json:"point"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

type EpisodeResult struct {
	Episode  int    `json:"episode"`
	EndTick  uint64 `json:"end_tick"`
	AgentID  string `json:"agent_id"`
	Score    int    `json:"score"`
	Captured int    `json:"captured"`
	Visited  int    `json:"visited"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type CaptureLogger interface {
	WriteCapture(rec CaptureRecord) error
}

type EpisodeSink interface {
	WriteEpisode(res EpisodeResult) error
}

// World is a single-threaded authoritative simulation. All state must be
// accessed only from the world loop goroutine; the channel API is the only
// way in.
type World struct {
	cfg WorldConfig

	tick atomic.Uint64

	level    *Level
	registry *PointRegistry
	resolver *Resolver
	arbiter  *TickArbiter

	agents  map[string]*Agent
	order   []string // registration order; fixes per-tick arbitration priority
	clients map[string]*clientState

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	nextAgentNum atomic.Uint64

	episode      int
	episodeStart uint64

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger    TickLogger
	captureLogger CaptureLogger
	episodeSink   EpisodeSink

	logger *log.Logger
}

type clientState struct {
	Out chan []byte
}

func New(cfg WorldConfig, logger *log.Logger) (*World, error) {
	t := cfg.Tuning
	if err := t.Validate(); err != nil {
		return nil, err
	}
	lv := GenerateLevel(cfg.Seed, t.MapSize, t.PointCount)
	reg := NewPointRegistry(lv.Points)

	w := &World{
		cfg:      cfg,
		level:    lv,
		registry: reg,
		arbiter:  NewTickArbiter(),
		agents:   map[string]*Agent{},
		clients:  map[string]*clientState{},
		inbox:    make(chan ActionEnvelope, 256),
		join:     make(chan JoinRequest, 8),
		leave:    make(chan string, 8),
		stop:     make(chan struct{}),
		episode:  1,
		logger:   logger,
	}
	w.resolver = &Resolver{
		Registry: reg,
		Oracle:   NewRayOracle(t.LOSEpsilon, 0),
		Walls:    lv.Walls,
		Log:      logger,
	}
	reg.OnOwnerChange(w.handleOwnerChange)

	// Autonomous claimants, registered before any client can join so their
	// arbitration priority is stable across runs.
	for i := 0; i < t.AgentCount; i++ {
		w.spawnAgent(fmt.Sprintf("agent_%d", i+1), false, nil)
	}
	return w, nil
}

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) Episode() int        { return w.episode }

func (w *World) SetTickLogger(l TickLogger)       { w.tickLogger = l }
func (w *World) SetCaptureLogger(l CaptureLogger) { w.captureLogger = l }
func (w *World) SetEpisodeSink(s EpisodeSink)     { w.episodeSink = s }

// Stop terminates Run.
func (w *World) Stop() { close(w.stop) }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

// StepOnce advances the world by a single tick with the same ordering
// semantics as the server loop. Primarily for deterministic tests and replay.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

func (w *World) spawnAgent(name string, controlled bool, out chan []byte) *Agent {
	num := w.nextAgentNum.Add(1)
	id := fmt.Sprintf("A%d", num)
	spawn := w.level.Spawns[int(num-1)%len(w.level.Spawns)]

	a := &Agent{
		ID:         id,
		Name:       name,
		Claimant:   NewClaimant(id, w.cfg.Tuning.Capacity),
		Pos:        spawn,
		Controlled: controlled,
		rng:        rand.New(rand.NewSource(w.cfg.Seed ^ int64(num)<<17)),
		visited:    map[PointID]bool{},
	}
	w.agents[id] = a
	w.order = append(w.order, id)
	if out != nil {
		w.clients[id] = &clientState{Out: out}
	}
	return a
}

func (w *World) handleJoin(req JoinRequest) JoinResponse {
	name := req.Name
	if name == "" {
		name = "agent"
	}
	a := w.spawnAgent(name, true, req.Out)
	t := w.cfg.Tuning
	resp := JoinResponse{
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			AgentID:         a.ID,
			WorldParams: protocol.WorldParams{
				TickRateHz:   t.TickRateHz,
				Seed:         w.cfg.Seed,
				MapSize:      t.MapSize,
				Capacity:     t.Capacity,
				PointCount:   t.PointCount,
				EpisodeTicks: t.EpisodeTicks,
				NavGridSize:  t.NavGridSize,
				MoveSpeed:    t.MoveSpeed,
			},
		},
	}
	return resp
}

// handleLeave despawns the claimant. Its owned points are released back to
// neutral in the same tick; ownership never dangles on a departed claimant.
func (w *World) handleLeave(agentID string) {
	a := w.agents[agentID]
	if a == nil {
		return
	}
	released := w.registry.ReleaseOwner(agentID, w.tick.Load())
	if released > 0 && w.logger != nil {
		w.logger.Printf("despawn %s released %d points", agentID, released)
	}
	a.Claimant.Clear()
	delete(w.agents, agentID)
	delete(w.clients, agentID)
	for i, id := range w.order {
		if id == agentID {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	nowTick := w.tick.Load()

	// Leaves and joins apply deterministically at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.agents[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.handleJoin(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{AgentID: resp.Welcome.AgentID, Name: req.Name})
	}

	// The arbiter lives for exactly one tick.
	w.arbiter.Reset()

	// Locomotion: client actions in server_receive_order, then the seeded
	// random walks.
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		env.Act.AgentID = env.AgentID // trust session identity
		recorded = append(recorded, RecordedAction{AgentID: env.AgentID, Act: env.Act})
		w.applyAct(a, env.Act, nowTick)
	}
	for _, id := range w.order {
		a := w.agents[id]
		if !a.Controlled {
			w.stepRandomWalk(a)
		}
	}

	// Claim pass, one claimant at a time in registration order. A claimant's
	// queued beam fires resolve immediately after its visibility pass, so the
	// whole of one claimant's tick outranks all of the next one's.
	for _, id := range w.order {
		a := w.agents[id]
		res := w.resolver.ResolveTick(a.Claimant, a.Pos, w.arbiter, nowTick)
		for _, pid := range res.Conflicts {
			a.AddEvent(protocol.Event{"t": nowTick, "type": "OWNERSHIP_CONFLICT", "point": int(pid)})
		}
		for _, pid := range res.Evicted {
			a.AddEvent(protocol.Event{"t": nowTick, "type": "EVICTED", "point": int(pid)})
		}
		for _, yaw := range a.pendingFire {
			bres, err := w.resolver.ResolveBeam(a.Claimant, a.Pos, yaw, w.cfg.Tuning.BeamRange, w.cfg.Tuning.BeamTolerance, w.arbiter, nowTick)
			switch err {
			case nil:
				for _, pid := range bres.Evicted {
					a.AddEvent(protocol.Event{"t": nowTick, "type": "EVICTED", "point": int(pid)})
				}
			case errBeamContested:
				a.AddEvent(actionResult(nowTick, "", false, protocol.ErrConflict, "point actively claimed"))
			default:
				a.AddEvent(actionResult(nowTick, "", false, protocol.ErrInvalidTarget, "beam hit nothing"))
			}
		}
		a.pendingFire = nil
	}

	// Visit counters (reward signal, not ownership).
	for _, id := range w.order {
		a := w.agents[id]
		for _, pid := range w.registry.IDs() {
			p, _ := w.registry.Get(pid)
			if a.Pos.DistXZ(p.Pos) <= w.cfg.Tuning.VisitRadius {
				a.markVisited(pid)
			}
		}
	}

	// Episode rollover.
	if w.cfg.Tuning.EpisodeTicks > 0 && nowTick-w.episodeStart+1 >= uint64(w.cfg.Tuning.EpisodeTicks) {
		w.rolloverEpisode(nowTick)
	}

	// OBS to connected clients, latest-wins.
	for id, cl := range w.clients {
		a := w.agents[id]
		if a == nil {
			continue
		}
		b, err := w.buildObs(a, nowTick)
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:    nowTick,
			Joins:   recordedJoins,
			Leaves:  recordedLeaves,
			Actions: recorded,
			Digest:  w.stateDigest(nowTick),
		})
	}

	w.tick.Add(1)
}

func (w *World) applyAct(a *Agent, act protocol.ActMsg, nowTick uint64) {
	// Staleness check: accept only [now-2, now].
	if act.Tick+2 < nowTick || act.Tick > nowTick {
		a.AddEvent(actionResult(nowTick, "ACT", false, protocol.ErrStale, "act tick out of range"))
		return
	}
	for _, inst := range act.Instants {
		switch inst.Type {
		case protocol.ActMoveForward, protocol.ActMoveBackward,
			protocol.ActStrafeLeft, protocol.ActStrafeRight, protocol.ActStay:
			if w.applyMove(a, inst.Type) {
				a.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
			} else {
				a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBlocked, "blocked"))
			}
		case protocol.ActTurn:
			a.Yaw = inst.Yaw
			a.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
		case protocol.ActFire:
			a.Yaw = inst.Yaw
			a.pendingFire = append(a.pendingFire, inst.Yaw)
		default:
			a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "unknown instant"))
		}
	}
}

func (w *World) rolloverEpisode(nowTick uint64) {
	if w.episodeSink != nil {
		for _, id := range w.order {
			a := w.agents[id]
			_ = w.episodeSink.WriteEpisode(EpisodeResult{
				Episode:  w.episode,
				EndTick:  nowTick,
				AgentID:  id,
				Score:    w.registry.OwnedBy(id),
				Captured: a.EpCaptured,
				Visited:  a.EpVisited(),
			})
		}
	}
	w.registry.ResetAll(nowTick)
	for i, id := range w.order {
		w.agents[id].resetEpisode(w.level.Spawns[i%len(w.level.Spawns)])
	}
	w.episode++
	w.episodeStart = nowTick + 1
}

func (w *World) handleOwnerChange(ev OwnerChange) {
	if to := w.agents[ev.To]; to != nil {
		to.EpCaptured++
		to.AddEvent(protocol.Event{"t": ev.Tick, "type": "CAPTURED", "point": int(ev.Point)})
	}
	if from := w.agents[ev.From]; from != nil {
		// Free the loser's capacity slot in the same tick the point changes
		// hands. Exactly one claimant may reference the point at a tick
		// boundary; waiting for the loser's next self-heal pass would leave
		// both held lists naming it when the loser resolved first.
		from.Claimant.Release(ev.Point)
		from.AddEvent(protocol.Event{"t": ev.Tick, "type": "LOST", "point": int(ev.Point), "to": ev.To})
	}
	if w.captureLogger != nil {
		_ = w.captureLogger.WriteCapture(CaptureRecord{
			Tick:    ev.Tick,
			Episode: w.episode,
			Point:   int(ev.Point),
			From:    ev.From,
			To:      ev.To,
		})
	}
}

// sendLatest delivers b, dropping the oldest queued message when the client
// is slow. OBS is a snapshot; only the newest matters.
func sendLatest(out chan []byte, b []byte) {
	for {
		select {
		case out <- b:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
