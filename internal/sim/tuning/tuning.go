package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz   int `yaml:"tick_rate_hz"`
	EpisodeTicks int `yaml:"episode_ticks"`

	MapSize    int `yaml:"map_size"`
	PointCount int `yaml:"point_count"`
	AgentCount int `yaml:"agent_count"`

	Capacity int `yaml:"capacity"`

	LOSEpsilon  float64 `yaml:"los_epsilon"`
	MoveSpeed   float64 `yaml:"move_speed"`
	ActorRadius float64 `yaml:"actor_radius"`
	VisitRadius float64 `yaml:"visit_radius"`

	BeamRange     float64 `yaml:"beam_range"`
	BeamTolerance float64 `yaml:"beam_tolerance"`

	NavGridSize int `yaml:"nav_grid_size"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      10,
		EpisodeTicks:    3000,
		MapSize:         10,
		PointCount:      12,
		AgentCount:      3,
		Capacity:        3,
		LOSEpsilon:      0.01,
		MoveSpeed:       0.05,
		ActorRadius:     0.2,
		VisitRadius:     0.5,
		BeamRange:       12,
		BeamTolerance:   0.15,
		NavGridSize:     15,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive")
	}
	if t.MapSize < 4 {
		return fmt.Errorf("map_size too small: %d", t.MapSize)
	}
	if t.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if t.PointCount <= 0 || t.PointCount >= t.MapSize*t.MapSize/2 {
		return fmt.Errorf("point_count out of range: %d", t.PointCount)
	}
	if t.NavGridSize%2 == 0 {
		return fmt.Errorf("nav_grid_size must be odd: %d", t.NavGridSize)
	}
	return nil
}
