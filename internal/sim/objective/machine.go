// Package objective implements the two-phase navigation objective: reach
// target A under a time budget, then reach target B. Checkpoints grant a
// one-shot bonus each per episode independently of the phase.
package objective

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
)

var (
	ErrMissingTarget      = errors.New("objective: target A and target B are required")
	ErrMissingCheckpoints = errors.New("objective: checkpoint list is required (may be empty)")
)

type Phase int

const (
	PhaseReachA Phase = iota
	PhaseReachB
)

func (p Phase) String() string {
	if p == PhaseReachB {
		return "REACH_B"
	}
	return "REACH_A"
}

const (
	InterpClamped     = "clamped"
	InterpExtrapolate = "extrapolate"
)

type Config struct {
	ReachRadiusA       float64 `yaml:"reach_radius_a" json:"reach_radius_a"`
	ReachRadiusB       float64 `yaml:"reach_radius_b" json:"reach_radius_b"`
	MaxTimeInPhase     float64 `yaml:"max_time_in_phase_s" json:"max_time_in_phase_s"`
	CheckpointRadius   float64 `yaml:"checkpoint_radius" json:"checkpoint_radius"`
	ProgressMultiplier float64 `yaml:"progress_multiplier" json:"progress_multiplier"`
	CheckpointBonus    float64 `yaml:"checkpoint_bonus" json:"checkpoint_bonus"`
	DoorBonus          float64 `yaml:"door_bonus" json:"door_bonus"`
	FinalBonus         float64 `yaml:"final_bonus" json:"final_bonus"`
	// TimeExpiredPenalty is the major penalty; the minor end is MinorPenaltyRatio of it.
	TimeExpiredPenalty   float64 `yaml:"time_expired_penalty" json:"time_expired_penalty"`
	MinorPenaltyRatio    float64 `yaml:"minor_penalty_ratio" json:"minor_penalty_ratio"`
	PenaltyInterpolation string  `yaml:"penalty_interpolation" json:"penalty_interpolation"`
}

func DefaultConfig() Config {
	return Config{
		ReachRadiusA:         1.5,
		ReachRadiusB:         1.5,
		MaxTimeInPhase:       30,
		CheckpointRadius:     1.0,
		ProgressMultiplier:   0.1,
		CheckpointBonus:      0.2,
		DoorBonus:            1.0,
		FinalBonus:           2.0,
		TimeExpiredPenalty:   -0.5,
		MinorPenaltyRatio:    0.2,
		PenaltyInterpolation: InterpClamped,
	}
}

func (c Config) Validate() error {
	if c.ReachRadiusA <= 0 || c.ReachRadiusB <= 0 || c.CheckpointRadius <= 0 {
		return fmt.Errorf("objective: radii must be > 0")
	}
	if c.MaxTimeInPhase <= 0 {
		return fmt.Errorf("objective: max_time_in_phase_s must be > 0")
	}
	switch c.PenaltyInterpolation {
	case InterpClamped, InterpExtrapolate:
	default:
		return fmt.Errorf("objective: unknown penalty_interpolation %q", c.PenaltyInterpolation)
	}
	return nil
}

// TimeoutPenalty interpolates between the minor and major penalty by ratio
// elapsed/budget.
func (c Config) TimeoutPenalty(ratio float64) float64 {
	major := c.TimeExpiredPenalty
	minor := major * c.MinorPenaltyRatio
	if c.PenaltyInterpolation != InterpExtrapolate {
		ratio = mgl64.Clamp(ratio, 0, 1)
	}
	return minor + (major-minor)*ratio
}

// Targets are the fixed points of one arena. A and B must be set;
// Checkpoints must be non-nil.
type Targets struct {
	A           *mgl64.Vec3
	B           *mgl64.Vec3
	Checkpoints []mgl64.Vec3
}

func (t Targets) Validate() error {
	if t.A == nil || t.B == nil {
		return ErrMissingTarget
	}
	if t.Checkpoints == nil {
		return ErrMissingCheckpoints
	}
	return nil
}

type GrantKind string

const (
	GrantProgress   GrantKind = "PROGRESS"
	GrantDoor       GrantKind = "DOOR"
	GrantCheckpoint GrantKind = "CHECKPOINT"
	GrantFinal      GrantKind = "FINAL"
	GrantTimeout    GrantKind = "TIMEOUT"
)

// Grant is one reward contribution raised by the machine.
type Grant struct {
	Kind       GrantKind
	Amount     float64
	Checkpoint int // index for GrantCheckpoint, else -1
}

// State is the externally visible objective state.
type State struct {
	Phase        Phase
	PhaseTime    float64
	PrevDistance float64 // to the active target
	ReachedA     bool
	Succeeded    bool
	Reached      []bool
	DistanceA    float64
	DistanceB    float64
}

// Outcome is what one evaluation produced.
type Outcome struct {
	Grants           []Grant
	ReachedAThisTick bool
	Succeeded        bool
	TimedOut         bool
	TimeRatio        float64
}

func (o Outcome) Sum() float64 {
	s := 0.0
	for _, g := range o.Grants {
		s += g.Amount
	}
	return s
}

type Machine struct {
	cfg     Config
	targets Targets
	st      State
}

func New(targets Targets, cfg Config) (*Machine, error) {
	if err := targets.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cps := append([]mgl64.Vec3(nil), targets.Checkpoints...)
	a, b := *targets.A, *targets.B
	m := &Machine{cfg: cfg, targets: Targets{A: &a, B: &b, Checkpoints: cps}}
	m.st.Reached = make([]bool, len(cps))
	return m, nil
}

func (m *Machine) Config() Config { return m.cfg }

// Restart puts the machine back in phase A with progress tracking based at pos.
func (m *Machine) Restart(pos mgl64.Vec3) {
	reached := m.st.Reached
	for i := range reached {
		reached[i] = false
	}
	dA, dB := m.Distances(pos)
	m.st = State{
		Phase:        PhaseReachA,
		PrevDistance: dA,
		Reached:      reached,
		DistanceA:    dA,
		DistanceB:    dB,
	}
}

func (m *Machine) Distances(pos mgl64.Vec3) (float64, float64) {
	return geom.Distance(pos, *m.targets.A), geom.Distance(pos, *m.targets.B)
}

// ActiveTarget is A before the transition and B after it.
func (m *Machine) ActiveTarget() mgl64.Vec3 {
	if m.st.Phase == PhaseReachB {
		return *m.targets.B
	}
	return *m.targets.A
}

func (m *Machine) Targets() Targets { return m.targets }

// Observe refreshes the reported distances without evaluating anything.
func (m *Machine) Observe(pos mgl64.Vec3) {
	m.st.DistanceA, m.st.DistanceB = m.Distances(pos)
}

// Evaluate advances the machine by dt seconds with the agent at pos. A
// timed-out outcome carries the penalty; the caller performs the reset.
func (m *Machine) Evaluate(pos mgl64.Vec3, dt float64) Outcome {
	var out Outcome
	m.Observe(pos)
	if m.st.Succeeded {
		return out
	}
	dA, dB := m.st.DistanceA, m.st.DistanceB

	switch m.st.Phase {
	case PhaseReachA:
		m.st.PhaseTime += dt
		if m.st.PhaseTime > m.cfg.MaxTimeInPhase {
			out.TimeRatio = m.st.PhaseTime / m.cfg.MaxTimeInPhase
			out.TimedOut = true
			out.Grants = append(out.Grants, Grant{Kind: GrantTimeout, Amount: m.cfg.TimeoutPenalty(out.TimeRatio), Checkpoint: -1})
			return out
		}
		out.Grants = m.progress(out.Grants, dA)
		if dA < m.cfg.ReachRadiusA {
			m.st.Phase = PhaseReachB
			m.st.ReachedA = true
			m.st.PhaseTime = 0
			m.st.PrevDistance = dB
			out.ReachedAThisTick = true
			out.Grants = append(out.Grants, Grant{Kind: GrantDoor, Amount: m.cfg.DoorBonus, Checkpoint: -1})
		}
	case PhaseReachB:
		m.st.PhaseTime += dt
		out.Grants = m.progress(out.Grants, dB)
		if dB < m.cfg.ReachRadiusB {
			m.st.Succeeded = true
			out.Succeeded = true
			out.Grants = append(out.Grants, Grant{Kind: GrantFinal, Amount: m.cfg.FinalBonus, Checkpoint: -1})
		}
	}

	for i, cp := range m.targets.Checkpoints {
		if m.st.Reached[i] {
			continue
		}
		if geom.Distance(pos, cp) < m.cfg.CheckpointRadius {
			m.st.Reached[i] = true
			out.Grants = append(out.Grants, Grant{Kind: GrantCheckpoint, Amount: m.cfg.CheckpointBonus, Checkpoint: i})
		}
	}
	return out
}

func (m *Machine) progress(grants []Grant, d float64) []Grant {
	if p := m.st.PrevDistance - d; p > 0 {
		grants = append(grants, Grant{Kind: GrantProgress, Amount: p * m.cfg.ProgressMultiplier, Checkpoint: -1})
	}
	m.st.PrevDistance = d
	return grants
}

// State returns a copy of the machine state.
func (m *Machine) State() State {
	st := m.st
	st.Reached = append([]bool(nil), m.st.Reached...)
	return st
}
