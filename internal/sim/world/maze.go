package world

import (
	"math"
	"math/rand"
)

// Level is the static geometry the protocol consumes: wall footprints, point
// positions and spawn cells. Generated once per world from the seed.
type Level struct {
	Size   int // cells per side; world spans [-Size/2, Size/2] in X and Z
	Walls  []Wall
	Points map[PointID]Vec3
	Spawns []Vec3
}

const pointHeight = 0.5 // points float at eye height, same plane as viewpoints

// GenerateLevel carves a perfect maze with a seeded depth-first backtracker,
// then knocks out a fraction of the remaining interior walls so corridors
// loop and longer sightlines exist. Points are placed on distinct non-spawn
// cell centers.
func GenerateLevel(seed int64, size, pointCount int) *Level {
	rng := rand.New(rand.NewSource(seed))
	h := float64(size) / 2

	// eastWall[cx][cz]: wall between (cx,cz) and (cx+1,cz).
	// southWall[cx][cz]: wall between (cx,cz) and (cx,cz+1).
	eastWall := make([][]bool, size)
	southWall := make([][]bool, size)
	visited := make([][]bool, size)
	for i := 0; i < size; i++ {
		eastWall[i] = make([]bool, size)
		southWall[i] = make([]bool, size)
		visited[i] = make([]bool, size)
		for j := 0; j < size; j++ {
			eastWall[i][j] = true
			southWall[i][j] = true
		}
	}

	type cell struct{ x, z int }
	stack := []cell{{0, 0}}
	visited[0][0] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		var next []cell
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, nz := cur.x+d[0], cur.z+d[1]
			if nx < 0 || nx >= size || nz < 0 || nz >= size || visited[nx][nz] {
				continue
			}
			next = append(next, cell{nx, nz})
		}
		if len(next) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		n := next[rng.Intn(len(next))]
		switch {
		case n.x == cur.x+1:
			eastWall[cur.x][cur.z] = false
		case n.x == cur.x-1:
			eastWall[n.x][n.z] = false
		case n.z == cur.z+1:
			southWall[cur.x][cur.z] = false
		default:
			southWall[n.x][n.z] = false
		}
		visited[n.x][n.z] = true
		stack = append(stack, n)
	}

	// Braid: a perfect maze has exactly one path between any two cells, which
	// makes every sightline a dead end. Open ~20% of the remaining walls.
	for cx := 0; cx < size-1; cx++ {
		for cz := 0; cz < size; cz++ {
			if eastWall[cx][cz] && rng.Float64() < 0.2 {
				eastWall[cx][cz] = false
			}
		}
	}
	for cx := 0; cx < size; cx++ {
		for cz := 0; cz < size-1; cz++ {
			if southWall[cx][cz] && rng.Float64() < 0.2 {
				southWall[cx][cz] = false
			}
		}
	}

	lv := &Level{Size: size, Points: map[PointID]Vec3{}}

	// Boundary.
	lv.Walls = append(lv.Walls,
		Wall{-h, -h, h, -h},
		Wall{h, -h, h, h},
		Wall{h, h, -h, h},
		Wall{-h, h, -h, -h},
	)
	for cx := 0; cx < size-1; cx++ {
		for cz := 0; cz < size; cz++ {
			if eastWall[cx][cz] {
				x := float64(cx+1) - h
				z := float64(cz) - h
				lv.Walls = append(lv.Walls, Wall{x, z, x, z + 1})
			}
		}
	}
	for cx := 0; cx < size; cx++ {
		for cz := 0; cz < size-1; cz++ {
			if southWall[cx][cz] {
				x := float64(cx) - h
				z := float64(cz+1) - h
				lv.Walls = append(lv.Walls, Wall{x, z, x + 1, z})
			}
		}
	}

	// Spawns in the four corners.
	lv.Spawns = []Vec3{
		lv.cellCenter(0, 0),
		lv.cellCenter(size-1, size-1),
		lv.cellCenter(size-1, 0),
		lv.cellCenter(0, size-1),
	}

	// Points on distinct non-corner cells.
	taken := map[[2]int]bool{
		{0, 0}: true, {size - 1, size - 1}: true,
		{size - 1, 0}: true, {0, size - 1}: true,
	}
	for id := PointID(1); int(id) <= pointCount; id++ {
		for {
			cx, cz := rng.Intn(size), rng.Intn(size)
			if taken[[2]int{cx, cz}] {
				continue
			}
			taken[[2]int{cx, cz}] = true
			lv.Points[id] = lv.cellCenter(cx, cz)
			break
		}
	}

	return lv
}

func (l *Level) cellCenter(cx, cz int) Vec3 {
	h := float64(l.Size) / 2
	return Vec3{X: float64(cx) - h + 0.5, Y: pointHeight, Z: float64(cz) - h + 0.5}
}

// Walkable reports whether a circle of the given radius at (x,z) is inside
// the level and clear of every wall.
func (l *Level) Walkable(x, z, radius float64) bool {
	h := float64(l.Size) / 2
	if x < -h+radius || x > h-radius || z < -h+radius || z > h-radius {
		return false
	}
	for _, w := range l.Walls {
		if distPointSegXZ(x, z, w) < radius {
			return false
		}
	}
	return true
}

// distPointSegXZ is the distance from (px,pz) to the wall footprint segment.
func distPointSegXZ(px, pz float64, w Wall) float64 {
	vx, vz := w.X2-w.X1, w.Z2-w.Z1
	wx, wz := px-w.X1, pz-w.Z1
	seg := vx*vx + vz*vz
	t := 0.0
	if seg > 0 {
		t = (wx*vx + wz*vz) / seg
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	dx, dz := px-(w.X1+vx*t), pz-(w.Z1+vz*t)
	return math.Sqrt(dx*dx + dz*dz)
}
