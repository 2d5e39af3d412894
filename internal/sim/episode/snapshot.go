package episode

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/objective"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/observation"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/reward"
)

// Snapshot is a full copy of the controller state for debugging and tests.
type Snapshot struct {
	Seed       int64             `json:"seed"`
	Now        float64           `json:"now"`
	Decisions  int               `json:"decisions"`
	Generation int               `json:"generation"`
	Done       bool              `json:"done"`
	Outcome    Outcome           `json:"outcome,omitempty"`
	Pending    float64           `json:"pending"`
	Return     float64           `json:"return"`
	Params     curriculum.Params `json:"params"`

	Body struct {
		Position mgl64.Vec3 `json:"position"`
		Velocity mgl64.Vec3 `json:"velocity"`
		Yaw      float64    `json:"yaw"`
	} `json:"body"`

	Motion     motion.State        `json:"motion"`
	Events     motion.EventBuffer  `json:"events"`
	Objective  objective.State     `json:"objective"`
	Window     []observation.Frame `json:"window"`
	Inactivity float64             `json:"inactivity"`
	Weights    reward.Weights      `json:"weights"`
}

func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	s.Seed = c.seed
	s.Now = c.now
	s.Decisions = c.decisions
	s.Generation = c.generation
	s.Done = c.done
	s.Outcome = c.outcome
	s.Pending = c.accum
	s.Return = c.ret
	s.Params = c.params.Merge(nil)
	s.Body.Position = c.deps.Body.Position()
	s.Body.Velocity = c.deps.Body.Velocity()
	s.Body.Yaw = c.deps.Body.Yaw()
	s.Motion = c.tracker.State()
	s.Events = c.buf
	s.Objective = c.machine.State()
	s.Window = c.obs.Window().Frames()
	s.Inactivity = c.idle.Timer()
	s.Weights = c.agg.Weights()
	return s
}
