// Package arena is a small reference world for the navigation core: static
// axis-aligned boxes, a door and a pressure plate, and a single agent body
// integrated under gravity with per-axis collision resolution.
package arena

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/scenery"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

type Box struct {
	Name     string
	Min, Max mgl64.Vec3
	Category worldq.SurfaceCategory
	Trigger  bool
}

func (b Box) overlaps(lo, hi mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if hi[i] <= b.Min[i] || lo[i] >= b.Max[i] {
			return false
		}
	}
	return true
}

// mover is a box whose position follows a scenery prop.
type mover struct {
	idx    int
	base   Box
	offset func() mgl64.Vec3
}

type Arena struct {
	layout  Layout
	boxes   []Box
	movers  []mover
	door    *scenery.Door
	plate   *scenery.Plate
	plateIx int

	agent   *Agent
	gravity float64
	now     float64

	solid    map[int]bool
	triggers map[int]bool
}

// New builds an arena from a layout. gravity is the downward acceleration.
func New(l Layout, gravity float64) (*Arena, error) {
	a := &Arena{
		layout:   l,
		gravity:  gravity,
		plateIx:  -1,
		solid:    map[int]bool{},
		triggers: map[int]bool{},
	}
	byName := map[string]int{}
	for _, d := range l.Boxes {
		b, err := d.box()
		if err != nil {
			return nil, fmt.Errorf("arena: %w", err)
		}
		if d.Name != "" {
			byName[d.Name] = len(a.boxes)
		}
		a.boxes = append(a.boxes, b)
	}
	if l.Door != nil {
		i, ok := byName[l.Door.Box]
		if !ok {
			return nil, fmt.Errorf("arena: door box %q not found", l.Door.Box)
		}
		a.door = scenery.NewDoor(a.boxes[i].Min, l.Door.DoorConfig)
		a.movers = append(a.movers, mover{idx: i, base: a.boxes[i], offset: a.door.Offset})
	}
	if l.Plate != nil {
		i, ok := byName[l.Plate.Box]
		if !ok {
			return nil, fmt.Errorf("arena: plate box %q not found", l.Plate.Box)
		}
		a.plate = scenery.NewPlate(a.boxes[i].Min, l.Plate.PlateConfig, a.door)
		a.plateIx = i
		a.movers = append(a.movers, mover{idx: i, base: a.boxes[i], offset: a.plate.Offset})
	}
	a.agent = &Agent{radius: l.Agent.Radius, height: l.Agent.Height}
	return a, nil
}

func (a *Arena) Agent() *Agent         { return a.agent }
func (a *Arena) Layout() Layout        { return a.layout }
func (a *Arena) Door() *scenery.Door   { return a.door }
func (a *Arena) Plate() *scenery.Plate { return a.plate }
func (a *Arena) Boxes() []Box          { return append([]Box(nil), a.boxes...) }

// Reset returns the props to rest, clears contact memory and the clock.
func (a *Arena) Reset() {
	a.now = 0
	if a.plate != nil {
		a.plate.Reset()
	} else if a.door != nil {
		a.door.Reset()
	}
	a.syncMovers()
	a.solid = map[int]bool{}
	a.triggers = map[int]bool{}
}

func (a *Arena) syncMovers() {
	for _, m := range a.movers {
		off := m.offset()
		b := m.base
		b.Min = b.Min.Add(off)
		b.Max = b.Max.Add(off)
		a.boxes[m.idx] = b
	}
}

// Raycast returns the nearest non-trigger box hit within maxRange.
func (a *Arena) Raycast(origin, dir mgl64.Vec3, maxRange float64, mask worldq.Mask) (worldq.Hit, bool) {
	best := maxRange
	var hit worldq.Hit
	found := false
	for _, b := range a.boxes {
		if b.Trigger || !mask.Has(b.Category) {
			continue
		}
		t, ok := slab(origin, dir, b)
		if !ok || t > best {
			continue
		}
		best = t
		hit = worldq.Hit{Distance: t, Category: b.Category, Point: origin.Add(dir.Mul(t))}
		found = true
	}
	return hit, found
}

// slab is the ray/box entry distance; a ray starting inside reports 0.
func slab(o, d mgl64.Vec3, b Box) (float64, bool) {
	tmin, tmax := 0.0, math.Inf(1)
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < b.Min[i] || o[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		t1 := (b.Min[i] - o[i]) / d[i]
		t2 := (b.Max[i] - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// SphereCastDown sweeps a sphere from origin straight down by maxDistance.
func (a *Arena) SphereCastDown(origin mgl64.Vec3, radius, maxDistance float64, mask worldq.Mask) bool {
	bottom := origin.Y() - maxDistance - radius
	top := origin.Y() + radius
	for _, b := range a.boxes {
		if b.Trigger || !mask.Has(b.Category) {
			continue
		}
		if b.Max.Y() < bottom || b.Min.Y() > top {
			continue
		}
		cx := mgl64.Clamp(origin.X(), b.Min.X(), b.Max.X())
		cz := mgl64.Clamp(origin.Z(), b.Min.Z(), b.Max.Z())
		dx, dz := origin.X()-cx, origin.Z()-cz
		if dx*dx+dz*dz <= radius*radius {
			return true
		}
	}
	return false
}

// Step advances props and the agent by dt and returns the contacts that
// began during this step, solid ones first.
func (a *Arena) Step(dt float64) []worldq.Contact {
	a.now += dt
	if a.plate != nil {
		a.plate.Step(a.now, dt)
	} else if a.door != nil {
		a.door.Step(a.now, dt)
	}
	a.syncMovers()

	ag := a.agent
	ag.vel[1] -= a.gravity * dt
	touched := map[int]bool{}
	for _, axis := range [3]int{1, 0, 2} {
		ag.pos[axis] += ag.vel[axis] * dt
		lo, hi := ag.bounds()
		for i, b := range a.boxes {
			if b.Trigger || !b.overlaps(lo, hi) {
				continue
			}
			touched[i] = true
			if ag.vel[axis] > 0 || (ag.vel[axis] == 0 && ag.pos[axis] < (b.Min[axis]+b.Max[axis])/2) {
				ag.pos[axis] -= hi[axis] - b.Min[axis]
			} else {
				ag.pos[axis] += b.Max[axis] - lo[axis]
			}
			ag.vel[axis] = 0
			lo, hi = ag.bounds()
		}
	}

	var out []worldq.Contact
	for i := range a.boxes {
		if touched[i] && !a.solid[i] {
			out = append(out, worldq.Contact{Kind: worldq.ContactSolid, Category: a.boxes[i].Category})
			if i == a.plateIx {
				a.plate.Enter()
			}
		}
		if !touched[i] && a.solid[i] && i == a.plateIx {
			a.plate.Exit(a.now)
		}
	}
	a.solid = touched

	lo, hi := ag.bounds()
	inside := map[int]bool{}
	for i, b := range a.boxes {
		if !b.Trigger || !b.overlaps(lo, hi) {
			continue
		}
		inside[i] = true
		if !a.triggers[i] {
			out = append(out, worldq.Contact{Kind: worldq.ContactTrigger, Category: b.Category})
		}
	}
	a.triggers = inside
	return out
}

// Agent is the arena's single body. Position is the feet.
type Agent struct {
	pos    mgl64.Vec3
	vel    mgl64.Vec3
	yaw    float64
	radius float64
	height float64
}

func (g *Agent) bounds() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{g.pos[0] - g.radius, g.pos[1], g.pos[2] - g.radius},
		mgl64.Vec3{g.pos[0] + g.radius, g.pos[1] + g.height, g.pos[2] + g.radius}
}

func (g *Agent) Position() mgl64.Vec3     { return g.pos }
func (g *Agent) Velocity() mgl64.Vec3     { return g.vel }
func (g *Agent) SetVelocity(v mgl64.Vec3) { g.vel = v }
func (g *Agent) Yaw() float64             { return g.yaw }
func (g *Agent) SetYaw(deg float64)       { g.yaw = deg }

func (g *Agent) Teleport(pos mgl64.Vec3, yawDeg float64) {
	g.pos = pos
	g.yaw = yawDeg
	g.vel = mgl64.Vec3{}
}
