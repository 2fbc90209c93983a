package world

import (
	"math"
	"testing"
)

func TestRayOracle_OpenLine(t *testing.T) {
	o := NewRayOracle(0.01, 0)
	if !o.LineOfSight(Vec3{}, Vec3{X: 5, Z: 5}, nil) {
		t.Fatalf("open line reported blocked")
	}
}

func TestRayOracle_WallBlocks(t *testing.T) {
	o := NewRayOracle(0.01, 0)
	wall := Wall{X1: 2, Z1: -1, X2: 2, Z2: 1}
	if o.LineOfSight(Vec3{}, Vec3{X: 4}, []Wall{wall}) {
		t.Fatalf("wall across the line not detected")
	}
	// A wall that does not cross the segment must not block.
	far := Wall{X1: 2, Z1: 5, X2: 2, Z2: 8}
	if !o.LineOfSight(Vec3{}, Vec3{X: 4}, []Wall{far}) {
		t.Fatalf("non-crossing wall blocked the line")
	}
}

func TestRayOracle_EndpointEpsilonFiltered(t *testing.T) {
	o := NewRayOracle(0.01, 0)
	// Crossing 5mm from the origin: a self-occlusion artifact, must be
	// filtered.
	atOrigin := Wall{X1: 0.005, Z1: -1, X2: 0.005, Z2: 1}
	if !o.LineOfSight(Vec3{}, Vec3{X: 4}, []Wall{atOrigin}) {
		t.Fatalf("near-origin crossing not filtered")
	}
	// Same at the target end.
	atTarget := Wall{X1: 3.995, Z1: -1, X2: 3.995, Z2: 1}
	if !o.LineOfSight(Vec3{}, Vec3{X: 4}, []Wall{atTarget}) {
		t.Fatalf("near-target crossing not filtered")
	}
	// Just outside the epsilon the wall is real.
	real := Wall{X1: 0.05, Z1: -1, X2: 0.05, Z2: 1}
	if o.LineOfSight(Vec3{}, Vec3{X: 4}, []Wall{real}) {
		t.Fatalf("crossing outside epsilon was filtered")
	}
}

func TestRayOracle_MaxDist(t *testing.T) {
	o := NewRayOracle(0.01, 3)
	if o.LineOfSight(Vec3{}, Vec3{X: 4}, nil) {
		t.Fatalf("target beyond max distance reported visible")
	}
	if !o.LineOfSight(Vec3{}, Vec3{X: 2}, nil) {
		t.Fatalf("target within max distance reported blocked")
	}
}

func TestRayOracle_IgnoresHeight(t *testing.T) {
	o := NewRayOracle(0.01, 0)
	wall := Wall{X1: 2, Z1: -1, X2: 2, Z2: 1}
	// Walls are full-height: a height difference does not open a sightline.
	if o.LineOfSight(Vec3{Y: 0.5}, Vec3{X: 4, Y: 2}, []Wall{wall}) {
		t.Fatalf("height difference bypassed a full-height wall")
	}
}

func TestSegCrossParam(t *testing.T) {
	w := Wall{X1: 1, Z1: -1, X2: 1, Z2: 1}
	tt, ok := segCrossParam(0, 0, 2, 0, w)
	if !ok || math.Abs(tt-0.5) > 1e-9 {
		t.Fatalf("expected crossing at t=0.5, got %v ok=%v", tt, ok)
	}
	if _, ok := segCrossParam(0, 0, 0.5, 0, w); ok {
		t.Fatalf("segment ending before the wall reported as crossing")
	}
	// The crossing line misses the wall's own extent (u out of [0,1]).
	short := Wall{X1: 1, Z1: 1, X2: 1, Z2: 2}
	if _, ok := segCrossParam(0, 0, 2, 0, short); ok {
		t.Fatalf("crossing beyond the wall endpoints reported as crossing")
	}
	// And a wall straddling the line from the other side still crosses.
	below := Wall{X1: 1, Z1: -2, X2: 1, Z2: 0.5}
	if _, ok := segCrossParam(0, 0, 2, 0, below); !ok {
		t.Fatalf("genuine crossing rejected")
	}
	// Parallel.
	if _, ok := segCrossParam(0, 0, 0, 2, w); ok {
		t.Fatalf("parallel segment reported as crossing")
	}
}

func TestDistPointSegXZ(t *testing.T) {
	w := Wall{X1: 0, Z1: 0, X2: 2, Z2: 0}
	if d := distPointSegXZ(1, 1, w); math.Abs(d-1) > 1e-9 {
		t.Fatalf("perpendicular distance: got %v", d)
	}
	if d := distPointSegXZ(3, 0, w); math.Abs(d-1) > 1e-9 {
		t.Fatalf("beyond-endpoint distance: got %v", d)
	}
}

func TestYawDir(t *testing.T) {
	d := YawDir(0)
	if math.Abs(d.X) > 1e-9 || math.Abs(d.Z-1) > 1e-9 {
		t.Fatalf("yaw 0 should face +Z: %+v", d)
	}
	d = YawDir(math.Pi / 2)
	if math.Abs(d.X-1) > 1e-9 || math.Abs(d.Z) > 1e-9 {
		t.Fatalf("yaw pi/2 should face +X: %+v", d)
	}
}
