package world

import (
	"errors"
	"fmt"
	"sort"
)

var ErrPointNotFound = errors.New("critical point not found")

type PointID int

// CriticalPoint is the authoritative ownership record for one point.
// Owner persists after visibility is lost; ActiveClaimant tracks the live
// line-of-sight claim and is always either empty or equal to Owner.
type CriticalPoint struct {
	ID  PointID
	Pos Vec3

	Owner          string // claimant id, "" = neutral
	ActiveClaimant string // "" when the owner is not actively watching
}

// OwnerChange is emitted on every owner mutation. Presentation, capture
// counters and the telemetry index all hang off this event.
type OwnerChange struct {
	Tick  uint64
	Point PointID
	From  string
	To    string
}

// PointRegistry is the single source of truth for "who owns what". It is
// mutated only from the world loop goroutine.
type PointRegistry struct {
	points map[PointID]*CriticalPoint
	order  []PointID

	onOwnerChange func(OwnerChange)
}

func NewPointRegistry(positions map[PointID]Vec3) *PointRegistry {
	r := &PointRegistry{points: make(map[PointID]*CriticalPoint, len(positions))}
	for id, pos := range positions {
		r.points[id] = &CriticalPoint{ID: id, Pos: pos}
		r.order = append(r.order, id)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r
}

// OnOwnerChange installs the owner-change hook. At most one; the world fans
// out to its consumers.
func (r *PointRegistry) OnOwnerChange(fn func(OwnerChange)) {
	r.onOwnerChange = fn
}

func (r *PointRegistry) Get(id PointID) (*CriticalPoint, error) {
	p, ok := r.points[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	return p, nil
}

// IDs returns point ids in stable ascending order. Iteration order matters:
// the resolver's scan and the state digest both depend on it.
func (r *PointRegistry) IDs() []PointID {
	return r.order
}

func (r *PointRegistry) Len() int { return len(r.order) }

// SetOwner establishes ownership plus an active claim. The caller is
// responsible for having updated the claimant's held list first; the registry
// does not enforce capacity.
func (r *PointRegistry) SetOwner(id PointID, claimant string, tick uint64) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	from := p.Owner
	p.Owner = claimant
	p.ActiveClaimant = claimant
	if from != claimant {
		r.emit(OwnerChange{Tick: tick, Point: id, From: from, To: claimant})
	}
	return nil
}

// TransferOwner is SetOwner under its change-of-hands name; kept separate so
// call sites read as what they do.
func (r *PointRegistry) TransferOwner(id PointID, newClaimant string, tick uint64) error {
	return r.SetOwner(id, newClaimant, tick)
}

// ClearActive drops the live claim, leaving ownership untouched. Losing sight
// of a point does not revoke it.
func (r *PointRegistry) ClearActive(id PointID) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	p.ActiveClaimant = ""
	return nil
}

// OwnedBy counts points currently owned by the claimant. This is the score.
func (r *PointRegistry) OwnedBy(claimant string) int {
	n := 0
	for _, id := range r.order {
		if r.points[id].Owner == claimant {
			n++
		}
	}
	return n
}

// ReleaseOwner returns every point owned by the claimant to neutral. Used by
// the despawn fix-up pass.
func (r *PointRegistry) ReleaseOwner(claimant string, tick uint64) int {
	n := 0
	for _, id := range r.order {
		p := r.points[id]
		if p.Owner != claimant {
			continue
		}
		p.Owner = ""
		p.ActiveClaimant = ""
		r.emit(OwnerChange{Tick: tick, Point: id, From: claimant, To: ""})
		n++
	}
	return n
}

// ResetAll returns every point to neutral (episode rollover).
func (r *PointRegistry) ResetAll(tick uint64) {
	for _, id := range r.order {
		p := r.points[id]
		if p.Owner != "" {
			r.emit(OwnerChange{Tick: tick, Point: id, From: p.Owner, To: ""})
		}
		p.Owner = ""
		p.ActiveClaimant = ""
	}
}

func (r *PointRegistry) emit(ev OwnerChange) {
	if r.onOwnerChange != nil {
		r.onOwnerChange(ev)
	}
}
