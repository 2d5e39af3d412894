// Package scenery drives the arena's scripted props: a door that slides
// between two positions and a pressure plate that opens it. Both are small
// state machines advanced on the physics cadence.
package scenery

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
)

type TweenState int

const (
	Idle TweenState = iota
	MovingTo
	Waiting
)

func (s TweenState) String() string {
	switch s {
	case MovingTo:
		return "MOVING_TO"
	case Waiting:
		return "WAITING"
	default:
		return "IDLE"
	}
}

// arriveEps is how close counts as arrived; the tween then snaps.
const arriveEps = 0.01

// Tween moves a point toward a target at constant speed. Waiting holds the
// point until a deadline, then moves toward the queued target.
type Tween struct {
	pos      mgl64.Vec3
	target   mgl64.Vec3
	speed    float64
	state    TweenState
	deadline float64
}

func NewTween(pos mgl64.Vec3, speed float64) *Tween {
	return &Tween{pos: pos, target: pos, speed: speed}
}

func (t *Tween) Pos() mgl64.Vec3       { return t.pos }
func (t *Tween) Target() mgl64.Vec3    { return t.target }
func (t *Tween) State() TweenState     { return t.state }
func (t *Tween) Deadline() float64     { return t.deadline }
func (t *Tween) Reset(pos mgl64.Vec3)  { *t = Tween{pos: pos, target: pos, speed: t.speed} }

// MoveTo starts moving immediately, replacing any wait or move in progress.
func (t *Tween) MoveTo(target mgl64.Vec3) {
	t.target = target
	t.state = MovingTo
}

// WaitThenMoveTo holds until deadline, then moves to target.
func (t *Tween) WaitThenMoveTo(deadline float64, target mgl64.Vec3) {
	t.target = target
	t.deadline = deadline
	t.state = Waiting
}

// Step advances the tween to time now by dt. It reports whether a wait
// expired during this step.
func (t *Tween) Step(now, dt float64) bool {
	expired := false
	if t.state == Waiting {
		if now < t.deadline {
			return false
		}
		t.state = MovingTo
		expired = true
	}
	if t.state == MovingTo {
		t.pos = moveTowards(t.pos, t.target, t.speed*dt)
		if geom.Distance(t.pos, t.target) <= arriveEps {
			t.pos = t.target
			t.state = Idle
		}
	}
	return expired
}

func moveTowards(from, to mgl64.Vec3, maxDelta float64) mgl64.Vec3 {
	d := to.Sub(from)
	l := d.Len()
	if l <= maxDelta || l == 0 {
		return to
	}
	return from.Add(d.Mul(maxDelta / l))
}
