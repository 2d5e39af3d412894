// Package spawn picks ground-snapped start poses inside a rectangle.
package spawn

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

const (
	probeLift  = 3.0
	probeRange = 5.0
)

// Area is a width x length rectangle around Center, rotated by YawDeg.
// Height is added on top of the snapped ground point.
type Area struct {
	Center mgl64.Vec3
	YawDeg float64
	Width  float64
	Length float64
	Height float64
}

var groundMask = worldq.MaskOf(worldq.SurfaceGround, worldq.SurfacePlatform)

// Sample draws a point in the rectangle, snaps it to the ground below and
// picks a random yaw in [0, 360). Only rng is consumed.
func (a Area) Sample(rng *rand.Rand, w worldq.World) (mgl64.Vec3, float64) {
	dx := (rng.Float64() - 0.5) * a.Width
	dz := (rng.Float64() - 0.5) * a.Length
	fwd := geom.Forward(a.YawDeg)
	right := geom.Forward(a.YawDeg + 90)
	p := a.Center.Add(right.Mul(dx)).Add(fwd.Mul(dz))

	y := a.Center.Y() + a.Height
	if w != nil {
		if hit, ok := w.Raycast(p.Add(geom.Up.Mul(probeLift)), geom.Down, probeRange, groundMask); ok {
			y = hit.Point.Y() + a.Height
		}
	}
	p[1] = y
	return p, rng.Float64() * 360
}
