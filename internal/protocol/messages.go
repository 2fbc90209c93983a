package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	AgentName       string            `json:"agent_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentID         string      `json:"agent_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz   int     `json:"tick_rate_hz"`
	Seed         int64   `json:"seed"`
	MapSize      int     `json:"map_size"`
	Capacity     int     `json:"capacity"`
	PointCount   int     `json:"point_count"`
	EpisodeTicks int     `json:"episode_ticks"`
	NavGridSize  int     `json:"nav_grid_size"`
	MoveSpeed    float64 `json:"move_speed"`
}
