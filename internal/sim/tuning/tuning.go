package tuning

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/objective"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/perception"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/reward"
)

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	Timing      Timing            `yaml:"timing" json:"timing"`
	Perception  perception.Config `yaml:"perception" json:"perception"`
	Motion      motion.Config     `yaml:"motion" json:"motion"`
	Objective   objective.Config  `yaml:"objective" json:"objective"`
	Observation Observation       `yaml:"observation" json:"observation"`
	Rewards     reward.Weights    `yaml:"rewards" json:"rewards"`

	Curriculum curriculum.Params `yaml:"curriculum" json:"curriculum"`
}

type Timing struct {
	PhysicsHz      int `yaml:"physics_hz" json:"physics_hz"`
	DecisionPeriod int `yaml:"decision_period" json:"decision_period"`
	FrameHz        int `yaml:"frame_hz" json:"frame_hz"`
}

func (t Timing) PhysicsDt() float64  { return 1 / float64(t.PhysicsHz) }
func (t Timing) DecisionDt() float64 { return float64(t.DecisionPeriod) / float64(t.PhysicsHz) }
func (t Timing) FrameDt() float64    { return 1 / float64(t.FrameHz) }

type Observation struct {
	Window int `yaml:"window" json:"window"`
	// DeclaredSize is the consumer's expected vector length; 0 derives it.
	DeclaredSize int `yaml:"declared_size" json:"declared_size"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Timing:          Timing{PhysicsHz: 50, DecisionPeriod: 5, FrameHz: 60},
		Perception:      perception.DefaultConfig(),
		Motion:          motion.DefaultConfig(),
		Objective:       objective.DefaultConfig(),
		Observation:     Observation{Window: 6},
		Rewards:         reward.DefaultWeights(),
		Curriculum:      curriculum.Defaults(),
	}
}

func (t Tuning) Validate() error {
	if t.Timing.PhysicsHz <= 0 || t.Timing.DecisionPeriod <= 0 || t.Timing.FrameHz <= 0 {
		return fmt.Errorf("tuning: timing rates must be > 0")
	}
	if t.Observation.Window <= 0 {
		return fmt.Errorf("tuning: observation.window must be > 0")
	}
	if err := t.Perception.Validate(); err != nil {
		return err
	}
	if err := t.Motion.Validate(); err != nil {
		return err
	}
	if err := t.Rewards.Validate(); err != nil {
		return err
	}
	return t.Objective.Validate()
}

// Digest is a stable fingerprint of the effective tuning, recorded with
// every episode so replays can detect drift.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var schema = jsonschema.MustCompileString("tuning.schema.json", schemaJSON)

// Load overlays path onto Defaults. The document is validated against the
// embedded schema before it is decoded.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := ValidateDocument(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// ValidateDocument checks a YAML (or JSON) tuning document against the schema.
func ValidateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// yaml decodes integers as int; the validator wants JSON values.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
