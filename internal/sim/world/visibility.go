package world

// VisibilityOracle answers "does an unobstructed line exist from origin to
// target within maxDist". The simulation treats it as an external collaborator
// so tests can substitute scripted sightlines.
type VisibilityOracle interface {
	LineOfSight(origin, target Vec3, walls []Wall) bool
}

// RayOracle is the default oracle: a 2D segment sweep against the wall
// footprints. Intersections closer than Epsilon to either endpoint are
// ignored; without that filter a viewpoint standing flush against a wall, or a
// point placed on a cell boundary, occludes itself.
type RayOracle struct {
	Epsilon float64 // world units, endpoint degeneracy filter
	MaxDist float64 // 0 = unlimited
}

func NewRayOracle(epsilon, maxDist float64) *RayOracle {
	return &RayOracle{Epsilon: epsilon, MaxDist: maxDist}
}

func (o *RayOracle) LineOfSight(origin, target Vec3, walls []Wall) bool {
	length := origin.DistXZ(target)
	if o.MaxDist > 0 && length > o.MaxDist {
		return false
	}
	if length < o.Epsilon {
		return true // standing on the point
	}
	for _, w := range walls {
		t, hit := segCrossParam(origin.X, origin.Z, target.X, target.Z, w)
		if !hit {
			continue
		}
		// Distance of the crossing from each endpoint.
		if t*length < o.Epsilon || (1-t)*length < o.Epsilon {
			continue
		}
		return false
	}
	return true
}
