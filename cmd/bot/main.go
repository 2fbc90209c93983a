package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"pointcraft.ai/internal/protocol"
)

// A random-policy client: the slot where a learned policy plugs in. It reads
// OBS, picks a uniformly random instant each tick, and occasionally fires
// toward a random heading.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "agent name")
		seed     = flag.Int64("seed", 0, "policy rng seed (0 = nondeterministic)")
		fireProb = flag.Float64("fire_prob", 0.05, "per-tick probability of a FIRE instant")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewSource(*seed))
	} else {
		rng = rand.New(rand.NewSource(int64(os.Getpid())))
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	agentID := ""
	seq := 0
	moves := []string{
		protocol.ActMoveForward,
		protocol.ActMoveBackward,
		protocol.ActStrafeLeft,
		protocol.ActStrafeRight,
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			agentID = w.AgentID
			logger.Printf("WELCOME agent_id=%s tick_rate=%d seed=%d points=%d capacity=%d",
				w.AgentID, w.WorldParams.TickRateHz, w.WorldParams.Seed,
				w.WorldParams.PointCount, w.WorldParams.Capacity)

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			if agentID == "" {
				continue
			}

			seq++
			inst := protocol.InstantReq{
				ID:   fmt.Sprintf("i%d", seq),
				Type: moves[rng.Intn(len(moves))],
			}
			act := protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				Tick:            obs.Tick,
				AgentID:         agentID,
				Instants:        []protocol.InstantReq{inst},
			}
			if rng.Float64() < *fireProb {
				seq++
				act.Instants = append(act.Instants, protocol.InstantReq{
					ID:   fmt.Sprintf("i%d", seq),
					Type: protocol.ActFire,
					Yaw:  rng.Float64() * 2 * math.Pi,
				})
			}
			if err := conn.WriteJSON(act); err != nil {
				return
			}

			if obs.Tick%100 == 0 {
				logger.Printf("tick=%d episode=%d scores=%v captured=%d visited=%d",
					obs.Tick, obs.Episode, scoreline(obs.Scores), obs.Self.Captured, obs.Self.Visited)
			}
		}
	}
}

func scoreline(scores []protocol.ScoreObs) string {
	out := ""
	for i, s := range scores {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", s.AgentID, s.Score)
	}
	return out
}
