package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Self   SelfObs    `json:"self"`
	Points []PointObs `json:"points"`
	Scores []ScoreObs `json:"scores"`

	// NavGrid is a row-major nav_grid_size^2 walkability grid centered on the
	// agent: 0 walkable, 1 wall/out-of-bounds.
	NavGrid []int `json:"nav_grid"`

	// Distances normalized by map size; 1.0 when no such point exists.
	NearestUnclaimed float64 `json:"nearest_unclaimed"`
	NearestEnemy     float64 `json:"nearest_enemy"`

	Episode       int     `json:"episode"`
	TimeRemaining float64 `json:"time_remaining"` // 0..1 within the episode

	Events []Event `json:"events,omitempty"`
}

type SelfObs struct {
	Pos      [3]float64 `json:"pos"`
	Yaw      float64    `json:"yaw"`
	Held     []int      `json:"held,omitempty"`
	Captured int        `json:"captured"`
	Visited  int        `json:"visited"`
}

type PointObs struct {
	ID     int        `json:"id"`
	Pos    [3]float64 `json:"pos"`
	Owner  string     `json:"owner,omitempty"` // empty = neutral
	Active bool       `json:"active"`
}

type ScoreObs struct {
	AgentID string `json:"agent_id"`
	Score   int    `json:"score"`
}

type Event map[string]interface{}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// TURN / FIRE direction in radians (XZ plane).
	Yaw float64 `json:"yaw,omitempty"`
}
