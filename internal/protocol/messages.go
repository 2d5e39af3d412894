package protocol

import (
	"github.com/DonatoReis/TestAgent-ML/internal/sim/reward"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
	AgentName         string   `json:"agent_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	AgentID         string     `json:"agent_id"`
	ObsSize         int        `json:"obs_size"`
	ObsWindow       int        `json:"obs_window"`
	Timing          TimingInfo `json:"timing"`
	Action          ActionSpec `json:"action"`
	Arena           string     `json:"arena"`
	TuningDigest    string     `json:"tuning_digest"`
}

type TimingInfo struct {
	PhysicsHz      int `json:"physics_hz"`
	DecisionPeriod int `json:"decision_period"`
	FrameHz        int `json:"frame_hz"`
}

// ActionSpec describes the action consumer: two continuous axes in [-1, 1]
// and one discrete jump.
type ActionSpec struct {
	Continuous []string `json:"continuous"`
	Discrete   []string `json:"discrete"`
}

// RESET (client -> server): start a new episode. Weights apply from this
// episode on; omitted weights keep the current ones.
type ResetMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Seed            int64              `json:"seed"`
	Params          map[string]float64 `json:"params,omitempty"`
	Weights         *reward.Weights    `json:"weights,omitempty"`
}

// ACT (client -> server). Step must equal the step of the last OBS.
type ActMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Step            int     `json:"step"`
	Move            float64 `json:"move"`
	Turn            float64 `json:"turn"`
	Jump            bool    `json:"jump,omitempty"`
}

// OBS (server -> client), sent after RESET (step 0, no reward) and after
// every ACT.
type ObsMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	EpisodeID       string    `json:"episode_id"`
	Step            int       `json:"step"`
	T               float64   `json:"t"`
	Obs             []float64 `json:"obs"`
	Reward          float64   `json:"reward"`
	Done            bool      `json:"done"`
	Outcome         string    `json:"outcome,omitempty"`
	Generation      int       `json:"generation"`
	TimedOut        bool      `json:"timed_out,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
