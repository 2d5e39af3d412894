package episode

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/objective"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/reward"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/simtest"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

type rngSpawner struct{}

func (rngSpawner) Sample(rng *rand.Rand, _ worldq.World) (mgl64.Vec3, float64) {
	return mgl64.Vec3{rng.Float64()*4 - 2, 0, rng.Float64() * 2}, rng.Float64() * 360
}

type harness struct {
	c    *Controller
	w    *simtest.World
	body *simtest.Body
	cfg  tuning.Tuning
}

func targets(a, b mgl64.Vec3, cps ...mgl64.Vec3) objective.Targets {
	if cps == nil {
		cps = []mgl64.Vec3{}
	}
	return objective.Targets{A: &a, B: &b, Checkpoints: cps}
}

func newHarness(t *testing.T, cfg tuning.Tuning, tg objective.Targets, sp Spawner) *harness {
	t.Helper()
	h := &harness{w: simtest.NewFlatWorld(), body: &simtest.Body{}, cfg: cfg}
	c, err := New(cfg, Deps{World: h.w, Body: h.body, Targets: tg, Spawn: sp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.c = c
	return h
}

// step runs one decision and the physics window that follows it.
func (h *harness) step(t *testing.T, act motion.Action) Decision {
	t.Helper()
	d, err := h.c.Decide(act)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	dt := h.cfg.Timing.PhysicsDt()
	for i := 0; i < h.cfg.Timing.DecisionPeriod && !h.c.Done(); i++ {
		h.body.Integrate(dt)
		h.c.PhysicsStep(dt)
	}
	return d
}

func has(r reward.Result, term reward.Term) (float64, bool) {
	for _, c := range r.Terms {
		if c.Term == term {
			return c.Amount, true
		}
	}
	return 0, false
}

func TestNew_ConfigurationErrors(t *testing.T) {
	cfg := tuning.Defaults()
	w, b := simtest.NewFlatWorld(), &simtest.Body{}
	tg := targets(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, 10})

	if _, err := New(cfg, Deps{Body: b, Targets: tg}); !errors.Is(err, ErrMissingWorld) {
		t.Fatalf("nil world: %v", err)
	}
	if _, err := New(cfg, Deps{World: w, Targets: tg}); !errors.Is(err, ErrMissingBody) {
		t.Fatalf("nil body: %v", err)
	}
	if _, err := New(cfg, Deps{World: w, Body: b, Targets: objective.Targets{Checkpoints: []mgl64.Vec3{}}}); !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("nil target: %v", err)
	}
	noCps := tg
	noCps.Checkpoints = nil
	if _, err := New(cfg, Deps{World: w, Body: b, Targets: noCps}); !errors.Is(err, ErrMissingCheckpoints) {
		t.Fatalf("nil checkpoints: %v", err)
	}
	bad := cfg
	bad.Observation.DeclaredSize = 10
	if _, err := New(bad, Deps{World: w, Body: b, Targets: tg}); !errors.Is(err, ErrObservationSize) {
		t.Fatalf("declared size: %v", err)
	}
}

func TestDecide_BeforeReset(t *testing.T) {
	h := newHarness(t, tuning.Defaults(), targets(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, 10}), nil)
	if _, err := h.c.Decide(motion.Action{}); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("err=%v", err)
	}
}

func TestReset_Idempotent(t *testing.T) {
	cfg := tuning.Defaults()
	h := newHarness(t, cfg, targets(mgl64.Vec3{0, 0, 20}, mgl64.Vec3{0, 0, 40}, mgl64.Vec3{0, 0, 3}), rngSpawner{})
	h.c.Reset(42, curriculum.Params{curriculum.KeyAllowJump: 0})
	once := h.c.Snapshot()
	h.c.Reset(42, curriculum.Params{curriculum.KeyAllowJump: 0})
	if diff := cmp.Diff(once, h.c.Snapshot()); diff != "" {
		t.Fatalf("double reset differs (-once +twice):\n%s", diff)
	}

	for i := 0; i < 40; i++ {
		h.step(t, motion.Action{Move: 1, Turn: 0.3})
		h.c.Frame(cfg.Timing.FrameDt())
	}
	h.c.Reset(42, curriculum.Params{curriculum.KeyAllowJump: 0})
	if diff := cmp.Diff(once, h.c.Snapshot()); diff != "" {
		t.Fatalf("reset after play differs (-fresh +reset):\n%s", diff)
	}
	if once.Objective.Reached[0] || once.Now != 0 || once.Generation != 0 {
		t.Fatalf("fresh state: %+v", once.Objective)
	}
	for _, f := range once.Window {
		if f != (once.Window[0]) || f.DistanceA != 0 {
			t.Fatalf("window not zero padded: %+v", once.Window)
		}
	}
}

// Spawned 20 m from A and walking straight at it at 2.5 m/s, the agent
// enters the 1.5 m radius at 7.5 s of episode time: the medium band.
func TestScenario_MediumBandArrival(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.Motion.MoveSpeed = 2.5
	h := newHarness(t, cfg, targets(mgl64.Vec3{0, 0, 20}, mgl64.Vec3{0, 0, 80}), nil)
	h.c.Reset(1, nil)

	progress, doors, arrivals := 0.0, 0, 0
	var arrival float64
	var doorAt float64
	for h.c.Now() < 19-1e-9 {
		d := h.step(t, motion.Action{Move: 1})
		for _, g := range d.Objective.Grants {
			switch g.Kind {
			case objective.GrantProgress:
				progress += g.Amount
			case objective.GrantDoor:
				doors++
				doorAt = d.Now
			}
		}
		if v, ok := has(d.Reward, reward.TermArrival); ok {
			arrivals++
			arrival = v
		}
		if _, ok := has(d.Reward, reward.TermDirectional); !ok && d.Index > 0 {
			t.Fatalf("decision %d: moving toward target without directional bonus", d.Index)
		}
	}
	if progress <= 0 {
		t.Fatalf("progress=%v", progress)
	}
	if doors != 1 || arrivals != 1 {
		t.Fatalf("doors=%d arrivals=%d", doors, arrivals)
	}
	if doorAt < 5 || doorAt >= 10 || arrival != cfg.Rewards.ArrivalMedium {
		t.Fatalf("door at %.2fs bonus %v, want medium band", doorAt, arrival)
	}
	if h.c.Done() {
		t.Fatalf("episode ended early: %s", h.c.Outcome())
	}
}

func TestScenario_FallOnce(t *testing.T) {
	h := newHarness(t, tuning.Defaults(), targets(mgl64.Vec3{0, 0, 20}, mgl64.Vec3{0, 0, 40}), nil)
	h.c.Reset(1, nil)
	h.w.NoFloor = true
	h.body.Pos = mgl64.Vec3{0, -2, 0}
	h.c.PhysicsStep(0.02)

	d, err := h.c.Decide(motion.Action{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Done || d.Outcome != OutcomeFall || !d.Reward.Terminate {
		t.Fatalf("decision=%+v", d)
	}
	falls := 0
	for i, c := range d.Reward.Terms {
		if c.Term == reward.TermFall {
			falls++
			if i != len(d.Reward.Terms)-1 {
				t.Fatalf("terms after fall: %+v", d.Reward.Terms)
			}
		}
	}
	if falls != 1 {
		t.Fatalf("fall applied %d times", falls)
	}
	if _, err := h.c.Decide(motion.Action{}); !errors.Is(err, ErrEpisodeDone) {
		t.Fatalf("decide after fall: %v", err)
	}
	before := h.c.Return()
	h.c.HandleContact(worldq.Contact{Kind: worldq.ContactSolid, Category: worldq.SurfaceWall})
	h.c.Frame(10)
	if h.c.Return() != before {
		t.Fatalf("reward added after termination")
	}
}

func TestScenario_TimeoutSoftReset(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.Objective.MaxTimeInPhase = 1
	h := newHarness(t, cfg, targets(mgl64.Vec3{0, 0, 20}, mgl64.Vec3{0, 0, 40}), rngSpawner{})
	h.c.Reset(9, nil)

	var d Decision
	for i := 0; i < 11; i++ {
		d = h.step(t, motion.Action{Move: 0.5})
	}
	if !d.TimedOut || d.Generation != 1 || d.Done {
		t.Fatalf("decision=%+v", d)
	}
	if v, ok := has(d.Reward, reward.TermObjective); !ok || math.Abs(v+0.5) > 1e-12 {
		t.Fatalf("timeout penalty=%v", v)
	}
	st := h.c.Snapshot()
	if st.Objective.PhaseTime != 0 || st.Objective.Phase != objective.PhaseReachA {
		t.Fatalf("objective not restarted: %+v", st.Objective)
	}
	if st.Now < 1 {
		t.Fatalf("episode clock should keep running, now=%v", st.Now)
	}
	h.c.Reset(9, nil)
	if h.c.Generation() != 0 {
		t.Fatalf("generation after reset=%d", h.c.Generation())
	}
}

func TestObserve_ConstantLength(t *testing.T) {
	cfg := tuning.Defaults()
	h := newHarness(t, cfg, targets(mgl64.Vec3{0, 0, 3}, mgl64.Vec3{0, 0, 6}), nil)
	want := 3 + 9*cfg.Observation.Window + 41*6
	if h.c.ObservationSize() != want {
		t.Fatalf("size=%d want %d", h.c.ObservationSize(), want)
	}
	h.c.Reset(3, nil)
	for !h.c.Done() {
		if n := len(h.c.Observe()); n != want {
			t.Fatalf("len=%d want %d at t=%.2f", n, want, h.c.Now())
		}
		h.step(t, motion.Action{Move: 1})
	}
	if h.c.Outcome() != OutcomeSuccess {
		t.Fatalf("outcome=%s", h.c.Outcome())
	}
	if n := len(h.c.Observe()); n != want {
		t.Fatalf("len after end=%d", n)
	}
}

func TestObjectiveInactive_NoGrants(t *testing.T) {
	h := newHarness(t, tuning.Defaults(), targets(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, 2}, mgl64.Vec3{}), nil)
	h.c.Reset(1, curriculum.Params{curriculum.KeyHasObjective: 0, curriculum.KeyExploreRoom: 0})
	d := h.step(t, motion.Action{})
	if len(d.Objective.Grants) != 0 {
		t.Fatalf("grants with objective inactive: %+v", d.Objective.Grants)
	}
	if _, ok := has(d.Reward, reward.TermExploration); ok {
		t.Fatalf("exploration with switch off")
	}
}

func TestContactsAndTakeReward(t *testing.T) {
	h := newHarness(t, tuning.Defaults(), targets(mgl64.Vec3{0, 0, 20}, mgl64.Vec3{0, 0, 40}), nil)
	h.c.Reset(1, nil)
	h.c.HandleContact(worldq.Contact{Kind: worldq.ContactSolid, Category: worldq.SurfaceWall})
	h.c.HandleContact(worldq.Contact{Kind: worldq.ContactSolid, Category: worldq.SurfaceObstacle})
	if got := h.c.TakeReward(); math.Abs(got-(-0.08-0.5)) > 1e-12 {
		t.Fatalf("contact reward=%v", got)
	}
	if h.c.TakeReward() != 0 {
		t.Fatalf("accumulator not drained")
	}
	d := h.step(t, motion.Action{})
	if _, ok := has(d.Reward, reward.TermCollision); !ok {
		t.Fatalf("window collision not folded into the decision: %+v", d.Reward.Terms)
	}
	d = h.step(t, motion.Action{})
	if _, ok := has(d.Reward, reward.TermCollision); ok {
		t.Fatalf("event buffer not cleared between windows")
	}
}

func TestSetWeights_AppliesOnNextReset(t *testing.T) {
	h := newHarness(t, tuning.Defaults(), targets(mgl64.Vec3{0, 0, 20}, mgl64.Vec3{0, 0, 40}), nil)
	h.c.Reset(1, nil)
	w := reward.DefaultWeights()
	w.Wall = -1
	h.c.SetWeights(w)
	if h.c.Weights().Wall != -0.08 {
		t.Fatalf("weights changed mid-episode")
	}
	h.c.Reset(1, nil)
	if h.c.Weights().Wall != -1 {
		t.Fatalf("weights not applied on reset")
	}
}

func TestPhysics_TakeoffTriggerCountsAsClearance(t *testing.T) {
	h := newHarness(t, tuning.Defaults(), targets(mgl64.Vec3{0, 0, 20}, mgl64.Vec3{0, 0, 40}), nil)
	h.c.Reset(1, nil)
	h.body.Pos = mgl64.Vec3{0, 0, 0}
	h.c.Physics(0.02, nil)
	if !h.c.Snapshot().Motion.Grounded {
		t.Fatalf("agent on the floor not grounded")
	}

	// the step that leaves the ground also enters the hurdle trigger
	h.body.Pos = mgl64.Vec3{0, 1.2, 0}
	h.body.Vel = mgl64.Vec3{0, 3, 0}
	h.c.Physics(0.02, []worldq.Contact{{Kind: worldq.ContactTrigger, Category: worldq.SurfaceObstacle}})
	ev := h.c.Snapshot().Events
	if !ev.TriggerClearance || ev.TriggerCollision {
		t.Fatalf("events=%+v", ev)
	}
}
