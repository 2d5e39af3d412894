// Package env runs one training session: an arena, one agent and its
// episode controller, stepped on the physics, frame and decision cadences.
package env

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/episode"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/reward"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
)

type Options struct {
	Tuning   tuning.Tuning
	Layout   arena.Layout
	AgentID  string
	Recorder Recorder
	Logger   *log.Logger
	// NewID names episodes; uuid.NewString when nil.
	NewID func() string
	// Now stamps records; time.Now when nil.
	Now func() time.Time
}

type Session struct {
	opts   Options
	log    *log.Logger
	arena  *arena.Arena
	ctl    *episode.Controller
	digest string

	episodeID string
	running   bool
	frameAcc  float64
}

// StepResult is what the training loop reads back after one action.
type StepResult struct {
	Observation []float64
	Reward      float64
	Done        bool
	Outcome     episode.Outcome
	Decision    episode.Decision
}

func NewSession(opts Options) (*Session, error) {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lg := opts.Logger
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	ar, err := arena.New(opts.Layout, opts.Tuning.Motion.Gravity)
	if err != nil {
		return nil, err
	}
	targets, err := opts.Layout.ObjectiveTargets()
	if err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	area, err := opts.Layout.SpawnArea()
	if err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	ctl, err := episode.New(opts.Tuning, episode.Deps{
		World:   ar,
		Body:    ar.Agent(),
		Targets: targets,
		Spawn:   area,
		Logger:  lg,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		opts:   opts,
		log:    lg,
		arena:  ar,
		ctl:    ctl,
		digest: opts.Tuning.Digest(),
	}, nil
}

func (s *Session) ObservationSize() int             { return s.ctl.ObservationSize() }
func (s *Session) EpisodeID() string                { return s.episodeID }
func (s *Session) Controller() *episode.Controller { return s.ctl }
func (s *Session) Arena() *arena.Arena              { return s.arena }
func (s *Session) TuningDigest() string             { return s.digest }

// Reset ends any running episode as aborted and starts a new one. weights,
// when non-nil, apply from this episode on.
func (s *Session) Reset(seed int64, params curriculum.Params, weights *reward.Weights) []float64 {
	s.abort()
	if weights != nil {
		s.ctl.SetWeights(*weights)
	}
	s.arena.Reset()
	s.ctl.Reset(seed, params)
	s.frameAcc = 0
	s.episodeID = s.opts.NewID()
	s.running = true

	s.record(Record{Kind: KindEpisodeStart, Start: &StartInfo{
		Seed:         seed,
		Params:       s.ctl.Params(),
		Weights:      s.ctl.Weights(),
		TuningDigest: s.digest,
		Arena:        s.opts.Layout.Name,
	}})
	return s.ctl.Observe()
}

// Step applies one action, then runs one decision period of physics.
func (s *Session) Step(act motion.Action) (StepResult, error) {
	d, err := s.ctl.Decide(act)
	if err != nil {
		return StepResult{}, err
	}
	if !d.Done {
		s.physics()
	}
	res := StepResult{
		Observation: s.ctl.Observe(),
		Reward:      s.ctl.TakeReward(),
		Done:        d.Done,
		Outcome:     d.Outcome,
		Decision:    d,
	}

	k := s.ctl.Snapshot()
	s.record(Record{Kind: KindDecision, Decision: &DecisionInfo{
		Index:      d.Index,
		T:          d.Now,
		Action:     ActionInfo{Move: act.Move, Turn: act.Turn, Jump: act.Jump},
		Reward:     res.Reward,
		Terms:      d.Reward.Terms,
		Phase:      k.Objective.Phase.String(),
		Generation: d.Generation,
		Pos:        [3]float64(k.Body.Position),
	}})
	if d.TimedOut {
		s.record(Record{Kind: KindTimeoutReset, Timeout: &TimeoutInfo{
			Generation: d.Generation,
			T:          d.Now,
			Penalty:    d.Objective.Sum(),
			Ratio:      d.Objective.TimeRatio,
		}})
	}
	if d.Done {
		s.end()
	}
	return res, nil
}

func (s *Session) physics() {
	t := s.opts.Tuning.Timing
	dt := t.PhysicsDt()
	fdt := t.FrameDt()
	for i := 0; i < t.DecisionPeriod; i++ {
		s.ctl.Physics(dt, s.arena.Step(dt))
		s.frameAcc += dt
		for s.frameAcc >= fdt {
			s.frameAcc -= fdt
			s.ctl.Frame(fdt)
		}
	}
}

// Close aborts a running episode.
func (s *Session) Close() { s.abort() }

func (s *Session) abort() {
	if !s.running || s.ctl.Done() {
		return
	}
	s.ctl.Abort()
	s.end()
}

func (s *Session) end() {
	if !s.running {
		return
	}
	s.running = false
	snap := s.ctl.Snapshot()
	s.record(Record{Kind: KindEpisodeEnd, End: &EndInfo{
		Outcome:     s.ctl.Outcome(),
		Return:      s.ctl.Return(),
		Decisions:   snap.Decisions,
		T:           snap.Now,
		Generations: snap.Generation,
		Snapshot:    &snap,
	}})
}

func (s *Session) record(r Record) {
	if s.opts.Recorder == nil {
		return
	}
	r.EpisodeID = s.episodeID
	r.AgentID = s.opts.AgentID
	r.UnixMS = s.opts.Now().UnixMilli()
	if err := s.opts.Recorder.Record(r); err != nil {
		s.log.Printf("record %s episode=%s: %v", r.Kind, s.episodeID, err)
	}
}
