// Package simtest holds small deterministic stand-ins for the physics engine,
// shared by package tests that need a world or a body without an arena.
package simtest

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

// Plane is an infinite wall perpendicular to +Z at Z.
type Plane struct {
	Z        float64
	Category worldq.SurfaceCategory
}

// World is a flat floor at FloorY plus optional Z walls.
type World struct {
	FloorY     float64
	FloorCat   worldq.SurfaceCategory
	NoFloor    bool
	Walls      []Plane
	Raycasts   int
	SphereHits int
}

func NewFlatWorld() *World {
	return &World{FloorCat: worldq.SurfaceGround}
}

func (w *World) Raycast(origin, dir mgl64.Vec3, maxRange float64, mask worldq.Mask) (worldq.Hit, bool) {
	w.Raycasts++
	best := worldq.Hit{Distance: math.Inf(1)}
	found := false
	if !w.NoFloor && dir.Y() < 0 && mask.Has(w.FloorCat) {
		t := (w.FloorY - origin.Y()) / dir.Y()
		if t >= 0 && t <= maxRange && t < best.Distance {
			best = worldq.Hit{Distance: t, Category: w.FloorCat, Point: origin.Add(dir.Mul(t))}
			found = true
		}
	}
	for _, p := range w.Walls {
		if dir.Z() == 0 || !mask.Has(p.Category) {
			continue
		}
		t := (p.Z - origin.Z()) / dir.Z()
		if t >= 0 && t <= maxRange && t < best.Distance {
			best = worldq.Hit{Distance: t, Category: p.Category, Point: origin.Add(dir.Mul(t))}
			found = true
		}
	}
	return best, found
}

func (w *World) SphereCastDown(origin mgl64.Vec3, radius, maxDistance float64, mask worldq.Mask) bool {
	if w.NoFloor || !mask.Has(w.FloorCat) {
		return false
	}
	ok := origin.Y()-maxDistance-radius <= w.FloorY && origin.Y()+radius >= w.FloorY
	if ok {
		w.SphereHits++
	}
	return ok
}

// Body is a kinematic point body with no integration of its own.
type Body struct {
	Pos mgl64.Vec3
	Vel mgl64.Vec3
	Deg float64
}

func (b *Body) Position() mgl64.Vec3     { return b.Pos }
func (b *Body) Velocity() mgl64.Vec3     { return b.Vel }
func (b *Body) SetVelocity(v mgl64.Vec3) { b.Vel = v }
func (b *Body) Yaw() float64             { return b.Deg }
func (b *Body) SetYaw(deg float64)       { b.Deg = deg }
func (b *Body) Teleport(pos mgl64.Vec3, yawDeg float64) {
	b.Pos = pos
	b.Deg = yawDeg
	b.Vel = mgl64.Vec3{}
}

// Integrate moves the body by its velocity over dt.
func (b *Body) Integrate(dt float64) {
	b.Pos = b.Pos.Add(b.Vel.Mul(dt))
}
