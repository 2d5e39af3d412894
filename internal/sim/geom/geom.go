package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	Up   = mgl64.Vec3{0, 1, 0}
	Down = mgl64.Vec3{0, -1, 0}
)

// Forward is the horizontal unit heading for a yaw in degrees
// (clockwise from +Z toward +X).
func Forward(yawDeg float64) mgl64.Vec3 {
	r := mgl64.DegToRad(yawDeg)
	return mgl64.Vec3{math.Sin(r), 0, math.Cos(r)}
}

// Direction is the unit vector for a yaw and an elevation pitch, both in
// degrees. Positive pitch points up.
func Direction(yawDeg, pitchDeg float64) mgl64.Vec3 {
	y := mgl64.DegToRad(yawDeg)
	p := mgl64.DegToRad(pitchDeg)
	c := math.Cos(p)
	return mgl64.Vec3{c * math.Sin(y), math.Sin(p), c * math.Cos(y)}
}

func Distance(a, b mgl64.Vec3) float64 {
	return b.Sub(a).Len()
}

// DirectionTo returns the unit vector from a to b, or zero when they coincide.
func DirectionTo(a, b mgl64.Vec3) mgl64.Vec3 {
	d := b.Sub(a)
	if d.Len() == 0 {
		return mgl64.Vec3{}
	}
	return d.Normalize()
}

// AngleBetween returns the unsigned angle in degrees between a and b.
func AngleBetween(a, b mgl64.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return 0
	}
	c := mgl64.Clamp(a.Dot(b)/(la*lb), -1, 1)
	return mgl64.RadToDeg(math.Acos(c))
}

// WrapYaw normalizes an angle to [0, 360).
func WrapYaw(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Horizontal drops the Y component.
func Horizontal(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X(), 0, v.Z()}
}
