package env

import (
	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/episode"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/reward"
)

type RecordKind string

const (
	KindEpisodeStart RecordKind = "episode_start"
	KindDecision     RecordKind = "decision"
	KindTimeoutReset RecordKind = "timeout_reset"
	KindEpisodeEnd   RecordKind = "episode_end"
)

// Record is one telemetry line. Exactly one of the payload pointers is set,
// matching Kind.
type Record struct {
	Kind      RecordKind `json:"kind"`
	EpisodeID string     `json:"episode_id"`
	AgentID   string     `json:"agent_id,omitempty"`
	UnixMS    int64      `json:"ts"`

	Start    *StartInfo    `json:"start,omitempty"`
	Decision *DecisionInfo `json:"decision,omitempty"`
	Timeout  *TimeoutInfo  `json:"timeout,omitempty"`
	End      *EndInfo      `json:"end,omitempty"`
}

type StartInfo struct {
	Seed         int64             `json:"seed"`
	Params       curriculum.Params `json:"params"`
	Weights      reward.Weights    `json:"weights"`
	TuningDigest string            `json:"tuning_digest"`
	Arena        string            `json:"arena"`
}

type ActionInfo struct {
	Move float64 `json:"move"`
	Turn float64 `json:"turn"`
	Jump bool    `json:"jump"`
}

type DecisionInfo struct {
	Index      int                   `json:"index"`
	T          float64               `json:"t"`
	Action     ActionInfo            `json:"action"`
	Reward     float64               `json:"reward"`
	Terms      []reward.Contribution `json:"terms,omitempty"`
	Phase      string                `json:"phase"`
	Generation int                   `json:"generation"`
	Pos        [3]float64            `json:"pos"`
}

type TimeoutInfo struct {
	Generation int     `json:"generation"`
	T          float64 `json:"t"`
	Penalty    float64 `json:"penalty"`
	Ratio      float64 `json:"ratio"`
}

type EndInfo struct {
	Outcome     episode.Outcome   `json:"outcome"`
	Return      float64           `json:"return"`
	Decisions   int               `json:"decisions"`
	T           float64           `json:"t"`
	Generations int               `json:"generations"`
	Snapshot    *episode.Snapshot `json:"snapshot,omitempty"`
}

// Recorder receives telemetry. Implementations must not retain r's slices.
type Recorder interface {
	Record(r Record) error
}

// MultiRecorder fans a record out to every recorder, returning the first error.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(r Record) error {
	var first error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		if err := rec.Record(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
