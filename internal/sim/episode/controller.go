// Package episode owns one agent's state holders and fixes the order in
// which they run: physics sampling and the observation window on the physics
// cadence, inactivity on the frame cadence, and action, objective, reward on
// the decision cadence.
package episode

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/objective"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/observation"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/perception"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/reward"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

var (
	ErrMissingTarget      = objective.ErrMissingTarget
	ErrMissingCheckpoints = objective.ErrMissingCheckpoints
	ErrObservationSize    = observation.ErrObservationSize
	ErrMissingWorld       = errors.New("episode: world query service is required")
	ErrMissingBody        = errors.New("episode: agent body is required")

	ErrEpisodeDone = errors.New("episode: terminated")
	ErrNotStarted  = errors.New("episode: reset has not been called")
)

type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFall    Outcome = "FALL"
	OutcomeAborted Outcome = "ABORTED"
)

// Spawner returns a ground-snapped spawn pose. It draws only from rng.
type Spawner interface {
	Sample(rng *rand.Rand, w worldq.World) (mgl64.Vec3, float64)
}

type Deps struct {
	World   worldq.World
	Body    worldq.Body
	Targets objective.Targets
	// Spawn may be nil; the body's pose at construction is used instead.
	Spawn  Spawner
	Logger *log.Logger
}

// Decision is what one decision tick produced.
type Decision struct {
	Index      int
	Now        float64
	Jumped     bool
	Objective  objective.Outcome
	Reward     reward.Result
	TimedOut   bool
	Generation int
	Done       bool
	Outcome    Outcome
}

type Controller struct {
	cfg  tuning.Tuning
	deps Deps
	log  *log.Logger

	home    mgl64.Vec3
	homeYaw float64

	enc     *perception.Encoder
	tracker *motion.Tracker
	machine *objective.Machine
	obs     *observation.Aggregator
	agg     *reward.Aggregator
	idle    reward.Inactivity
	buf     motion.EventBuffer

	started bool
	seed    int64
	rng     *rand.Rand
	params  curriculum.Params
	cur     curriculum.Resolved
	pending *reward.Weights

	now        float64
	decisions  int
	generation int
	accum      float64
	ret        float64
	done       bool
	outcome    Outcome
}

// New validates every configuration dependency and refuses to build a
// controller when any is missing or inconsistent.
func New(cfg tuning.Tuning, deps Deps) (*Controller, error) {
	if deps.World == nil {
		return nil, ErrMissingWorld
	}
	if deps.Body == nil {
		return nil, ErrMissingBody
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	enc, err := perception.NewEncoder(cfg.Perception)
	if err != nil {
		return nil, err
	}
	tr, err := motion.NewTracker(cfg.Motion)
	if err != nil {
		return nil, err
	}
	m, err := objective.New(deps.Targets, cfg.Objective)
	if err != nil {
		return nil, err
	}
	obs, err := observation.NewAggregator(cfg.Observation.Window, enc.Len(), cfg.Observation.DeclaredSize)
	if err != nil {
		return nil, err
	}
	lg := deps.Logger
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	return &Controller{
		cfg:     cfg,
		deps:    deps,
		log:     lg,
		home:    deps.Body.Position(),
		homeYaw: deps.Body.Yaw(),
		enc:     enc,
		tracker: tr,
		machine: m,
		obs:     obs,
		agg:     reward.NewAggregator(cfg.Rewards),
	}, nil
}

// ObservationSize is the constant length of Observe's result.
func (c *Controller) ObservationSize() int { return c.obs.Size() }

// SetWeights stages reward weights for the next Reset. The running episode
// keeps its weights.
func (c *Controller) SetWeights(w reward.Weights) { c.pending = &w }

// Reset starts a fresh episode. It is deterministic in seed and params, so
// two consecutive calls leave identical state.
func (c *Controller) Reset(seed int64, params curriculum.Params) {
	c.started = true
	c.seed = seed
	c.rng = rand.New(rand.NewSource(seed))
	c.params = c.cfg.Curriculum.Merge(params)
	c.cur = c.params.Resolve()
	c.now = 0
	c.decisions = 0
	c.generation = 0
	c.accum = 0
	c.ret = 0
	c.done = false
	c.outcome = OutcomeNone

	c.agg.Reset(0, c.pending)
	c.tracker.Configure(motion.Gates{
		MovementAllowed: c.cur.AllowMovement,
		JumpAllowed:     c.cur.AllowJump,
		MaxJumpHeight:   c.cur.MaxJumpHeight,
	})
	c.obs.Reset()
	c.respawn()
}

// respawn places the agent and restarts motion and objective state. The
// clock and the observation window are left alone.
func (c *Controller) respawn() {
	pos, yaw := c.home, c.homeYaw
	if c.deps.Spawn != nil {
		pos, yaw = c.deps.Spawn.Sample(c.rng, c.deps.World)
	}
	c.deps.Body.Teleport(pos, yaw)
	c.tracker.Reset()
	c.buf.Clear()
	c.tracker.Sample(c.deps.World, c.deps.Body, &c.buf)
	c.buf.Clear()
	c.machine.Restart(pos)
	c.idle.Reset(pos)
}

// PhysicsStep runs after the engine integrated the body by dt.
func (c *Controller) PhysicsStep(dt float64) {
	if !c.started || c.done {
		return
	}
	c.now += dt
	k := c.tracker.Sample(c.deps.World, c.deps.Body, &c.buf)
	dA, dB := c.machine.Distances(k.Position)
	c.obs.Push(observation.Frame{
		Position:  k.Position,
		Velocity:  k.Velocity,
		Grounded:  k.Grounded,
		DistanceA: dA,
		DistanceB: dB,
	})
}

// Physics runs one physics step after the engine has integrated and
// reported the step's contacts. Grounding is sampled before the contacts
// are classified, so a trigger entered on the takeoff step sees the agent
// airborne.
func (c *Controller) Physics(dt float64, contacts []worldq.Contact) {
	c.PhysicsStep(dt)
	for _, ct := range contacts {
		c.HandleContact(ct)
	}
}

// HandleContact routes an engine contact to the tracker and, for solid
// contacts, adds the category penalty straight to the accumulator.
func (c *Controller) HandleContact(ct worldq.Contact) {
	if !c.started || c.done {
		return
	}
	c.tracker.HandleContact(ct, c.deps.Body, &c.buf)
	if ct.Kind == worldq.ContactSolid {
		c.add(reward.CollisionPenalty(ct.Category, c.agg.Weights()))
	}
}

// Frame runs the inactivity monitor on the render cadence.
func (c *Controller) Frame(dt float64) {
	if !c.started || c.done {
		return
	}
	c.add(c.idle.Frame(c.deps.Body.Position(), dt, c.agg.Weights()))
}

// Decide applies one action and evaluates the window that just ended:
// action, then objective, then reward. The event buffer is cleared last so
// the next window starts empty.
func (c *Controller) Decide(act motion.Action) (Decision, error) {
	if !c.started {
		return Decision{}, ErrNotStarted
	}
	if c.done {
		return Decision{}, ErrEpisodeDone
	}
	dt := c.cfg.Timing.DecisionDt()
	d := Decision{Index: c.decisions, Now: c.now}
	c.decisions++

	d.Jumped = c.tracker.Apply(act, c.deps.Body, c.now, dt)
	k := c.tracker.Kinematic()

	if c.cur.ObjectiveOn {
		d.Objective = c.machine.Evaluate(k.Position, dt)
	} else {
		c.machine.Observe(k.Position)
	}
	st := c.machine.State()

	d.Reward = c.agg.Evaluate(reward.Input{
		Now:         c.now,
		Objective:   d.Objective,
		Phase:       st.Phase,
		ReachedA:    st.ReachedA,
		Target:      c.machine.ActiveTarget(),
		Kinematic:   k,
		Event:       c.tracker.Event(c.buf),
		Exploration: c.cur.Exploration,
	})
	c.add(d.Reward.Total)
	c.buf.Clear()

	switch {
	case d.Reward.Terminate:
		c.finish(OutcomeFall)
	case d.Objective.Succeeded:
		c.finish(OutcomeSuccess)
	case d.Objective.TimedOut:
		c.generation++
		d.TimedOut = true
		c.log.Printf("seed=%d TIMEOUT_RESET generation=%d ratio=%.3f penalty=%.4f",
			c.seed, c.generation, d.Objective.TimeRatio, d.Objective.Sum())
		c.respawn()
	}
	d.Generation = c.generation
	d.Done = c.done
	d.Outcome = c.outcome
	return d, nil
}

// Abort ends a running episode without a reward consequence.
func (c *Controller) Abort() {
	if c.started && !c.done {
		c.finish(OutcomeAborted)
	}
}

func (c *Controller) finish(o Outcome) {
	c.done = true
	c.outcome = o
	c.log.Printf("seed=%d %s return=%.4f decisions=%d t=%.2fs generation=%d",
		c.seed, o, c.ret, c.decisions, c.now, c.generation)
}

func (c *Controller) add(v float64) {
	c.accum += v
	c.ret += v
}

// Observe encodes the current observation vector.
func (c *Controller) Observe() []float64 {
	k := c.tracker.Kinematic()
	percept := c.enc.Encode(nil, c.deps.World, k.Position, k.Yaw)
	return c.obs.Vector(k.Position, percept)
}

// TakeReward returns the reward accumulated since the previous call.
func (c *Controller) TakeReward() float64 {
	r := c.accum
	c.accum = 0
	return r
}

func (c *Controller) Done() bool                      { return c.done }
func (c *Controller) Outcome() Outcome                { return c.outcome }
func (c *Controller) Generation() int                 { return c.generation }
func (c *Controller) Now() float64                    { return c.now }
func (c *Controller) Seed() int64                     { return c.seed }
func (c *Controller) Return() float64                 { return c.ret }
func (c *Controller) Params() curriculum.Params       { return c.params.Merge(nil) }
func (c *Controller) Weights() reward.Weights         { return c.agg.Weights() }
func (c *Controller) Curriculum() curriculum.Resolved { return c.cur }

func (c *Controller) String() string {
	return fmt.Sprintf("episode(seed=%d t=%.2f decisions=%d gen=%d done=%v %s)",
		c.seed, c.now, c.decisions, c.generation, c.done, c.outcome)
}
