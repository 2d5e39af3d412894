// Package reward combines one decision tick's objective outcome and motion
// summary into a scalar reward delta. The aggregator keeps only the episode
// start time; the inactivity monitor runs on its own per-frame cadence.
package reward

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/objective"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

// Weights is the immutable per-episode reward configuration.
type Weights struct {
	ArrivalFast        float64 `yaml:"arrival_fast" json:"arrival_fast"`
	ArrivalMedium      float64 `yaml:"arrival_medium" json:"arrival_medium"`
	ArrivalSlow        float64 `yaml:"arrival_slow" json:"arrival_slow"`
	FastBand           float64 `yaml:"fast_band_s" json:"fast_band_s"`
	MediumBand         float64 `yaml:"medium_band_s" json:"medium_band_s"`
	Exploration        float64 `yaml:"exploration" json:"exploration"`
	DistancePenalty    float64 `yaml:"distance_penalty" json:"distance_penalty"`
	Directional        float64 `yaml:"directional" json:"directional"`
	Fall               float64 `yaml:"fall" json:"fall"`
	FloorY             float64 `yaml:"floor_y" json:"floor_y"`
	TimePenalty        float64 `yaml:"time_penalty" json:"time_penalty"`
	Clearance          float64 `yaml:"clearance" json:"clearance"`
	FailedClearance    float64 `yaml:"failed_clearance" json:"failed_clearance"`
	Wall               float64 `yaml:"wall" json:"wall"`
	Ground             float64 `yaml:"ground" json:"ground"`
	Inactivity         float64 `yaml:"inactivity" json:"inactivity"`
	InactivityDistance float64 `yaml:"inactivity_distance" json:"inactivity_distance"`
	InactivityDuration float64 `yaml:"inactivity_duration_s" json:"inactivity_duration_s"`
}

func DefaultWeights() Weights {
	return Weights{
		ArrivalFast:        1.2,
		ArrivalMedium:      0.9,
		ArrivalSlow:        0.8,
		FastBand:           5,
		MediumBand:         10,
		Exploration:        0.5,
		DistancePenalty:    -0.0002,
		Directional:        1.0,
		Fall:               -0.5,
		FloorY:             -1,
		TimePenalty:        -0.0002,
		Clearance:          0.7,
		FailedClearance:    -0.5,
		Wall:               -0.08,
		Ground:             -0.05,
		Inactivity:         -0.1,
		InactivityDistance: 0.1,
		InactivityDuration: 5,
	}
}

// Validate rejects weights whose bands or thresholds cannot all take effect.
func (w Weights) Validate() error {
	if w.FastBand <= 0 || w.MediumBand < w.FastBand {
		return fmt.Errorf("rewards: need 0 < fast_band_s <= medium_band_s, got %v and %v", w.FastBand, w.MediumBand)
	}
	if w.InactivityDistance < 0 || w.InactivityDuration <= 0 {
		return fmt.Errorf("rewards: inactivity_distance must be >= 0 and inactivity_duration_s > 0")
	}
	return nil
}

type Term string

const (
	TermObjective   Term = "objective"
	TermArrival     Term = "arrival"
	TermExploration Term = "exploration"
	TermDistance    Term = "distance"
	TermDirectional Term = "directional"
	TermFall        Term = "fall"
	TermTime        Term = "time"
	TermClearance   Term = "clearance"
	TermCollision   Term = "collision"
)

// Contribution is one evaluated term.
type Contribution struct {
	Term   Term    `json:"term"`
	Amount float64 `json:"amount"`
}

type Result struct {
	Total     float64
	Terms     []Contribution
	Terminate bool
}

func (r *Result) add(t Term, v float64) {
	r.Total += v
	r.Terms = append(r.Terms, Contribution{Term: t, Amount: v})
}

// Input is everything one decision tick's aggregation reads.
type Input struct {
	Now         float64 // simulation clock, seconds
	Objective   objective.Outcome
	Phase       objective.Phase
	ReachedA    bool
	Target      mgl64.Vec3 // active target
	Kinematic   motion.Kinematic
	Event       motion.JumpEvent
	Exploration bool
}

type Aggregator struct {
	w     Weights
	start float64
}

func NewAggregator(w Weights) *Aggregator {
	return &Aggregator{w: w}
}

func (a *Aggregator) Weights() Weights { return a.w }

// Reset records the episode start time and, optionally, new weights.
func (a *Aggregator) Reset(now float64, w *Weights) {
	a.start = now
	if w != nil {
		a.w = *w
	}
}

func (a *Aggregator) Start() float64 { return a.start }

// Evaluate runs every term in order. A fall terminates and skips the rest.
func (a *Aggregator) Evaluate(in Input) Result {
	var r Result
	w := a.w
	elapsed := in.Now - a.start

	if in.Objective.Grants != nil {
		r.add(TermObjective, in.Objective.Sum())
	}
	if in.Objective.ReachedAThisTick {
		r.add(TermArrival, a.ArrivalBonus(elapsed))
	}
	if in.Exploration && in.Phase == objective.PhaseReachA && !in.ReachedA {
		r.add(TermExploration, w.Exploration)
	}

	pos := in.Kinematic.Position
	r.add(TermDistance, -math.Abs(w.DistancePenalty)*geom.Distance(pos, in.Target))
	if in.Kinematic.Velocity.Dot(geom.DirectionTo(pos, in.Target)) > 0 {
		r.add(TermDirectional, w.Directional)
	}

	if pos.Y() < w.FloorY {
		r.add(TermFall, w.Fall)
		r.Terminate = true
		return r
	}

	r.add(TermTime, w.TimePenalty)
	if in.Event.IsJumpingOverObstacle {
		r.add(TermClearance, w.Clearance)
	}
	if in.Event.CollidedWithObstacle {
		r.add(TermCollision, w.FailedClearance)
	}
	return r
}

// ArrivalBonus bands the elapsed episode time into fast, medium and slow tiers.
func (a *Aggregator) ArrivalBonus(elapsed float64) float64 {
	switch {
	case elapsed < a.w.FastBand:
		return a.w.ArrivalFast
	case elapsed < a.w.MediumBand:
		return a.w.ArrivalMedium
	default:
		return a.w.ArrivalSlow
	}
}

// CollisionPenalty is the immediate penalty for a solid contact.
func CollisionPenalty(c worldq.SurfaceCategory, w Weights) float64 {
	switch c {
	case worldq.SurfaceWall:
		return w.Wall
	case worldq.SurfaceGround:
		return w.Ground
	case worldq.SurfaceObstacle:
		return w.FailedClearance
	}
	return 0
}

