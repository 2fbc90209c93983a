package world

import "math"

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64       { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// DistXZ is the ground-plane distance; walls are vertical so occlusion and
// locomotion both work in the XZ plane.
func (v Vec3) DistXZ(o Vec3) float64 {
	dx, dz := v.X-o.X, v.Z-o.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Wall is a vertical, full-height obstacle surface given by its footprint
// segment in the XZ plane.
type Wall struct {
	X1, Z1 float64
	X2, Z2 float64
}

// segCrossParam returns the parameter t in [0,1] along a->b at which the
// segment crosses the wall footprint, and whether it crosses at all.
func segCrossParam(ax, az, bx, bz float64, w Wall) (float64, bool) {
	rx, rz := bx-ax, bz-az
	sx, sz := w.X2-w.X1, w.Z2-w.Z1

	denom := rx*sz - rz*sx
	if math.Abs(denom) < 1e-12 {
		return 0, false // parallel or degenerate
	}
	qpx, qpz := w.X1-ax, w.Z1-az
	t := (qpx*sz - qpz*sx) / denom
	u := (qpx*rz - qpz*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// distPointToRayXZ returns the closest-approach parameter along the ray
// (origin, dir) and the perpendicular distance to p, in the XZ plane.
// dir must be normalized.
func distPointToRayXZ(origin Vec3, dir Vec3, p Vec3) (t float64, d float64) {
	ox, oz := p.X-origin.X, p.Z-origin.Z
	t = ox*dir.X + oz*dir.Z
	cx, cz := origin.X+dir.X*t, origin.Z+dir.Z*t
	dx, dz := p.X-cx, p.Z-cz
	return t, math.Sqrt(dx*dx + dz*dz)
}

// YawDir converts a yaw angle (radians, XZ plane, 0 = +Z) into a unit
// direction vector.
func YawDir(yaw float64) Vec3 {
	return Vec3{X: math.Sin(yaw), Z: math.Cos(yaw)}
}
