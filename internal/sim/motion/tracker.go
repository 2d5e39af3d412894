// Package motion turns raw body state and ground queries into the agent's
// kinematic summary, applies the two continuous controls and the jump
// command, and classifies jump arcs and obstacle contacts.
package motion

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

type Config struct {
	MoveSpeed         float64 `yaml:"move_speed" json:"move_speed"`
	RotateSpeedDeg    float64 `yaml:"rotate_speed_deg" json:"rotate_speed_deg"`
	GroundCheckRadius float64 `yaml:"ground_check_radius" json:"ground_check_radius"`
	JumpCooldown      float64 `yaml:"jump_cooldown_s" json:"jump_cooldown_s"`
	MaxJumpHeight     float64 `yaml:"max_jump_height" json:"max_jump_height"`
	MinJumpHeight     float64 `yaml:"min_jump_height_threshold" json:"min_jump_height_threshold"`
	Gravity           float64 `yaml:"gravity" json:"gravity"`
}

func DefaultConfig() Config {
	return Config{
		MoveSpeed:         4,
		RotateSpeedDeg:    80,
		GroundCheckRadius: 0.2,
		JumpCooldown:      5,
		MaxJumpHeight:     8,
		MinJumpHeight:     0.5,
		Gravity:           9.81,
	}
}

func (c Config) Validate() error {
	if c.GroundCheckRadius <= 0 {
		return fmt.Errorf("motion: ground_check_radius must be > 0")
	}
	if c.Gravity <= 0 {
		return fmt.Errorf("motion: gravity must be > 0")
	}
	if c.JumpCooldown < 0 || c.MoveSpeed < 0 || c.RotateSpeedDeg < 0 {
		return fmt.Errorf("motion: speeds and cooldown must be >= 0")
	}
	return nil
}

// groundMask is what counts as standing surface.
var groundMask = worldq.MaskOf(worldq.SurfaceGround, worldq.SurfacePlatform)

// Kinematic is the per-tick read-only summary of the body.
type Kinematic struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Grounded bool
	Forward  mgl64.Vec3
	Yaw      float64
}

// Action is one decision from the policy.
type Action struct {
	Move float64 // forward/back in [-1,1]
	Turn float64 // left/right in [-1,1]
	Jump bool
}

// Gates are the curriculum switches. They are independent.
type Gates struct {
	MovementAllowed bool
	JumpAllowed     bool
	MaxJumpHeight   float64
}

// State is the tracker's internal state, exposed for snapshots.
type State struct {
	Gates           Gates
	Grounded        bool
	WasGrounded     bool
	JumpStartHeight float64
	MaxHeight       float64
	LastJump        float64
	Kinematic       Kinematic
}

type Tracker struct {
	cfg Config
	st  State
}

func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{cfg: cfg}
	t.st.Gates = Gates{MovementAllowed: true, JumpAllowed: true, MaxJumpHeight: cfg.MaxJumpHeight}
	t.Reset()
	return t, nil
}

// Configure sets the curriculum gates for the next episode. A non-positive
// height keeps the configured default.
func (t *Tracker) Configure(g Gates) {
	if g.MaxJumpHeight <= 0 {
		g.MaxJumpHeight = t.cfg.MaxJumpHeight
	}
	t.st.Gates = g
}

func (t *Tracker) Gates() Gates { return t.st.Gates }

// Reset returns the arc detector and cooldown to their episode-start values.
func (t *Tracker) Reset() {
	g := t.st.Gates
	t.st = State{
		Gates:       g,
		WasGrounded: true,
		LastJump:    -t.cfg.JumpCooldown,
	}
}

// Sample runs on the physics cadence after the engine has integrated the
// body. It refreshes grounding and advances the jump-arc detector; a landed
// arc higher than the threshold is recorded in buf.
func (t *Tracker) Sample(w worldq.World, body worldq.Body, buf *EventBuffer) Kinematic {
	pos := body.Position()
	r := t.cfg.GroundCheckRadius
	grounded := false
	if w != nil {
		grounded = w.SphereCastDown(pos.Add(geom.Up.Mul(r)), r, 2*r, groundMask)
	}

	switch {
	case !grounded && t.st.WasGrounded:
		t.st.JumpStartHeight = pos.Y()
		t.st.MaxHeight = pos.Y()
	case !grounded:
		t.st.MaxHeight = math.Max(t.st.MaxHeight, pos.Y())
	case !t.st.WasGrounded:
		if t.st.MaxHeight-t.st.JumpStartHeight > t.cfg.MinJumpHeight {
			buf.LandedArc = true
		}
	}
	t.st.WasGrounded = grounded
	t.st.Grounded = grounded
	t.st.Kinematic = kinematicOf(body, grounded)
	return t.st.Kinematic
}

// Apply runs on the decision cadence. now is the simulation clock in seconds
// and dt the decision interval. It reports whether a jump impulse was issued.
func (t *Tracker) Apply(act Action, body worldq.Body, now, dt float64) bool {
	move, turn := 0.0, 0.0
	if t.st.Gates.MovementAllowed {
		move = mgl64.Clamp(act.Move, -1, 1)
		turn = mgl64.Clamp(act.Turn, -1, 1)
	}

	v := body.Velocity()
	horiz := geom.Forward(body.Yaw()).Mul(move * t.cfg.MoveSpeed)
	v = mgl64.Vec3{horiz.X(), v.Y(), horiz.Z()}

	jumped := false
	if act.Jump && t.st.Gates.JumpAllowed && t.st.Grounded && now-t.st.LastJump >= t.cfg.JumpCooldown {
		v[1] = JumpVelocity(t.cfg.Gravity, t.st.Gates.MaxJumpHeight)
		t.st.LastJump = now
		t.st.JumpStartHeight = body.Position().Y()
		jumped = true
	}
	body.SetVelocity(v)
	if turn != 0 {
		body.SetYaw(geom.WrapYaw(body.Yaw() + turn*t.cfg.RotateSpeedDeg*dt))
	}
	t.st.Kinematic = kinematicOf(body, t.st.Grounded)
	return jumped
}

// HandleContact classifies an engine contact against obstacles.
func (t *Tracker) HandleContact(c worldq.Contact, body worldq.Body, buf *EventBuffer) {
	if c.Category != worldq.SurfaceObstacle {
		return
	}
	switch c.Kind {
	case worldq.ContactTrigger:
		if !t.st.Grounded && body.Velocity().Y() > 0 {
			buf.TriggerClearance = true
		} else {
			buf.TriggerCollision = true
		}
	case worldq.ContactSolid:
		buf.SolidCollision = true
	}
}

// Event folds the buffer into the tick's jump event.
func (t *Tracker) Event(buf EventBuffer) JumpEvent {
	k := t.st.Kinematic
	return JumpEvent{
		IsJumpingOverObstacle: buf.LandedArc || buf.TriggerClearance,
		CollidedWithObstacle:  buf.TriggerCollision || buf.SolidCollision,
		IsJumping:             !k.Grounded && k.Velocity.Y() > 0,
		JumpStartHeight:       t.st.JumpStartHeight,
		MaxHeightReached:      t.st.MaxHeight,
	}
}

func (t *Tracker) Kinematic() Kinematic { return t.st.Kinematic }

func (t *Tracker) State() State { return t.st }

// JumpVelocity is the launch speed that reaches apex height h under gravity g.
func JumpVelocity(g, h float64) float64 {
	if h <= 0 {
		return 0
	}
	return math.Sqrt(2 * math.Abs(g) * h)
}

func kinematicOf(body worldq.Body, grounded bool) Kinematic {
	yaw := body.Yaw()
	return Kinematic{
		Position: body.Position(),
		Velocity: body.Velocity(),
		Grounded: grounded,
		Forward:  geom.Forward(yaw),
		Yaw:      yaw,
	}
}
