// Package worldq defines the contract between the navigation core and the
// physics/world engine that owns geometry and rigid-body motion.
//
// Surfaces carry a SurfaceCategory resolved once by the engine at query time;
// callers switch on it instead of re-deriving layers at each call site.
package worldq

import "github.com/go-gl/mathgl/mgl64"

type SurfaceCategory uint8

const (
	SurfaceNone SurfaceCategory = iota
	SurfaceGround
	SurfaceWall
	SurfaceObstacle
	SurfacePlatform
)

// Categorized lists the categories that have a one-hot slot, in slot order.
var Categorized = [...]SurfaceCategory{SurfaceGround, SurfaceWall, SurfaceObstacle, SurfacePlatform}

func (c SurfaceCategory) String() string {
	switch c {
	case SurfaceGround:
		return "GROUND"
	case SurfaceWall:
		return "WALL"
	case SurfaceObstacle:
		return "OBSTACLE"
	case SurfacePlatform:
		return "PLATFORM"
	default:
		return "NONE"
	}
}

// Slot returns the one-hot index of c, or -1 for uncategorized surfaces.
func (c SurfaceCategory) Slot() int {
	for i, k := range Categorized {
		if k == c {
			return i
		}
	}
	return -1
}

func ParseCategory(s string) (SurfaceCategory, bool) {
	switch s {
	case "GROUND", "ground":
		return SurfaceGround, true
	case "WALL", "wall":
		return SurfaceWall, true
	case "OBSTACLE", "obstacle":
		return SurfaceObstacle, true
	case "PLATFORM", "platform":
		return SurfacePlatform, true
	case "NONE", "none", "":
		return SurfaceNone, true
	}
	return SurfaceNone, false
}

// Mask is a set of surface categories.
type Mask uint8

const MaskAll Mask = 0xFF

func MaskOf(cats ...SurfaceCategory) Mask {
	var m Mask
	for _, c := range cats {
		m |= 1 << c
	}
	return m
}

func (m Mask) Has(c SurfaceCategory) bool { return m&(1<<c) != 0 }

// Hit is a raycast result.
type Hit struct {
	Distance float64
	Category SurfaceCategory
	Point    mgl64.Vec3
}

// World is the query side of the physics engine.
type World interface {
	// Raycast returns the nearest surface in mask along dir within maxRange.
	Raycast(origin, dir mgl64.Vec3, maxRange float64, mask Mask) (Hit, bool)
	// SphereCastDown sweeps a sphere of radius from origin straight down by
	// maxDistance and reports whether it touches a surface in mask.
	SphereCastDown(origin mgl64.Vec3, radius, maxDistance float64, mask Mask) bool
}

// Body is the agent's rigid body as owned by the physics engine.
type Body interface {
	Position() mgl64.Vec3
	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	// Yaw is in degrees.
	Yaw() float64
	SetYaw(deg float64)
	// Teleport moves the body and clears its velocity.
	Teleport(pos mgl64.Vec3, yawDeg float64)
}

type ContactKind uint8

const (
	// ContactSolid is a rigid collision (collision enter).
	ContactSolid ContactKind = iota + 1
	// ContactTrigger is a trigger-volume overlap (trigger enter).
	ContactTrigger
)

func (k ContactKind) String() string {
	switch k {
	case ContactSolid:
		return "SOLID"
	case ContactTrigger:
		return "TRIGGER"
	}
	return "UNKNOWN"
}

// Contact is a physical event reported by the engine on the physics cadence.
type Contact struct {
	Kind     ContactKind
	Category SurfaceCategory
}
