package ws

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"pointcraft.ai/internal/protocol"
)

const schemasDir = "../../../schemas"

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.Compile(filepath.Join(schemasDir, name))
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func checkSchema(t *testing.T, s *jsonschema.Schema, v any) error {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return s.Validate(doc)
}

func TestSchemas_Hello(t *testing.T) {
	s := compileSchema(t, "hello.schema.json")

	good := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       "trainer",
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 16},
	}
	if err := checkSchema(t, s, good); err != nil {
		t.Fatalf("valid HELLO rejected: %v", err)
	}

	if err := s.Validate(map[string]any{
		"type":             "HELLO",
		"protocol_version": "1.0",
	}); err == nil {
		t.Fatalf("HELLO without agent_name accepted")
	}
	if err := s.Validate(map[string]any{
		"type":             "HELLO",
		"protocol_version": "1.0",
		"agent_name":       "x",
		"extra":            true,
	}); err == nil {
		t.Fatalf("HELLO with unknown field accepted")
	}
}

func TestSchemas_Act(t *testing.T) {
	s := compileSchema(t, "act.schema.json")

	good := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            42,
		Instants: []protocol.InstantReq{
			{ID: "i1", Type: protocol.ActMoveForward},
			{ID: "i2", Type: protocol.ActFire, Yaw: 1.5},
		},
	}
	if err := checkSchema(t, s, good); err != nil {
		t.Fatalf("valid ACT rejected: %v", err)
	}

	if err := s.Validate(map[string]any{
		"type":             "ACT",
		"protocol_version": "1.0",
		"tick":             float64(1),
		"instants": []any{
			map[string]any{"type": "TELEPORT"},
		},
	}); err == nil {
		t.Fatalf("ACT with unknown instant type accepted")
	}

	var many []any
	for i := 0; i < 9; i++ {
		many = append(many, map[string]any{"type": "STAY"})
	}
	if err := s.Validate(map[string]any{
		"type":             "ACT",
		"protocol_version": "1.0",
		"tick":             float64(1),
		"instants":         many,
	}); err == nil {
		t.Fatalf("ACT with more than 8 instants accepted")
	}
}

func TestSchemas_Welcome(t *testing.T) {
	s := compileSchema(t, "welcome.schema.json")

	good := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         "A4",
		WorldParams: protocol.WorldParams{
			TickRateHz:   10,
			Seed:         1337,
			MapSize:      10,
			Capacity:     3,
			PointCount:   12,
			EpisodeTicks: 3000,
			NavGridSize:  15,
			MoveSpeed:    0.05,
		},
	}
	if err := checkSchema(t, s, good); err != nil {
		t.Fatalf("valid WELCOME rejected: %v", err)
	}

	bad := good
	bad.WorldParams.MoveSpeed = 0
	if err := checkSchema(t, s, bad); err == nil {
		t.Fatalf("WELCOME with zero move_speed accepted")
	}
}

func TestSchemas_Obs(t *testing.T) {
	s := compileSchema(t, "obs.schema.json")

	good := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		AgentID:         "A1",
		Self: protocol.SelfObs{
			Pos:  [3]float64{0.5, 0.5, -1.5},
			Held: []int{3},
		},
		Points: []protocol.PointObs{
			{ID: 1, Pos: [3]float64{1, 0.5, 1}, Owner: "A1", Active: true},
			{ID: 2, Pos: [3]float64{-2, 0.5, 3}},
		},
		Scores:           []protocol.ScoreObs{{AgentID: "A1", Score: 1}},
		NavGrid:          []int{0, 1, 0, 0},
		NearestUnclaimed: 0.4,
		NearestEnemy:     1,
		Episode:          1,
		Events: []protocol.Event{
			{"t": 7, "type": "CAPTURED", "point": 1},
		},
	}
	if err := checkSchema(t, s, good); err != nil {
		t.Fatalf("valid OBS rejected: %v", err)
	}

	bad := good
	bad.NavGrid = []int{0, 2}
	if err := checkSchema(t, s, bad); err == nil {
		t.Fatalf("OBS with non-binary nav cell accepted")
	}
}
