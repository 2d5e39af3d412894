package arena

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/objective"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/scenery"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/spawn"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

//go:embed arena.yaml
var defaultLayout []byte

// Vec is a YAML [x, y, z] triple.
type Vec []float64

func (v Vec) vec3(field string) (mgl64.Vec3, error) {
	if len(v) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("%s: want [x, y, z], got %d values", field, len(v))
	}
	return mgl64.Vec3{v[0], v[1], v[2]}, nil
}

type BoxDef struct {
	Name     string `yaml:"name"`
	Min      Vec    `yaml:"min"`
	Max      Vec    `yaml:"max"`
	Category string `yaml:"category"`
	Trigger  bool   `yaml:"trigger"`
}

type SpawnDef struct {
	Center Vec     `yaml:"center"`
	YawDeg float64 `yaml:"yaw_deg"`
	Width  float64 `yaml:"width"`
	Length float64 `yaml:"length"`
	Height float64 `yaml:"height"`
}

type DoorDef struct {
	Box string `yaml:"box"`

	scenery.DoorConfig `yaml:",inline"`
}

type PlateDef struct {
	Box string `yaml:"box"`

	scenery.PlateConfig `yaml:",inline"`
}

type AgentDef struct {
	Radius float64 `yaml:"radius"`
	Height float64 `yaml:"height"`
}

type Layout struct {
	Name  string   `yaml:"name"`
	Boxes []BoxDef `yaml:"boxes"`

	Targets struct {
		A Vec `yaml:"a"`
		B Vec `yaml:"b"`
	} `yaml:"targets"`
	Checkpoints []Vec `yaml:"checkpoints"`

	Spawn SpawnDef  `yaml:"spawn"`
	Door  *DoorDef  `yaml:"door"`
	Plate *PlateDef `yaml:"plate"`
	Agent AgentDef  `yaml:"agent"`
}

// DefaultLayout is the two-room arena shipped with the binary.
func DefaultLayout() (Layout, error) {
	return ParseLayout(defaultLayout)
}

func LoadLayout(path string) (Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	l, err := ParseLayout(raw)
	if err != nil {
		return l, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func ParseLayout(raw []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("arena.yaml: %w", err)
	}
	if l.Agent.Radius <= 0 {
		l.Agent.Radius = 0.4
	}
	if l.Agent.Height <= 0 {
		l.Agent.Height = 1.8
	}
	return l, nil
}

// ObjectiveTargets converts the layout targets. A missing target or checkpoint list
// leaves the corresponding field nil so the controller rejects it.
func (l Layout) ObjectiveTargets() (objective.Targets, error) {
	var t objective.Targets
	if l.Targets.A != nil {
		a, err := l.Targets.A.vec3("targets.a")
		if err != nil {
			return t, err
		}
		t.A = &a
	}
	if l.Targets.B != nil {
		b, err := l.Targets.B.vec3("targets.b")
		if err != nil {
			return t, err
		}
		t.B = &b
	}
	if l.Checkpoints != nil {
		t.Checkpoints = make([]mgl64.Vec3, 0, len(l.Checkpoints))
		for i, c := range l.Checkpoints {
			v, err := c.vec3(fmt.Sprintf("checkpoints[%d]", i))
			if err != nil {
				return t, err
			}
			t.Checkpoints = append(t.Checkpoints, v)
		}
	}
	return t, nil
}

func (l Layout) SpawnArea() (spawn.Area, error) {
	c, err := l.Spawn.Center.vec3("spawn.center")
	if err != nil {
		return spawn.Area{}, err
	}
	return spawn.Area{
		Center: c,
		YawDeg: l.Spawn.YawDeg,
		Width:  l.Spawn.Width,
		Length: l.Spawn.Length,
		Height: l.Spawn.Height,
	}, nil
}

func (d BoxDef) box() (Box, error) {
	lo, err := d.Min.vec3(d.Name + ".min")
	if err != nil {
		return Box{}, err
	}
	hi, err := d.Max.vec3(d.Name + ".max")
	if err != nil {
		return Box{}, err
	}
	for i := 0; i < 3; i++ {
		if lo[i] > hi[i] {
			return Box{}, fmt.Errorf("%s: min > max on axis %d", d.Name, i)
		}
	}
	cat, ok := worldq.ParseCategory(d.Category)
	if !ok {
		return Box{}, fmt.Errorf("%s: unknown category %q", d.Name, d.Category)
	}
	return Box{Name: d.Name, Min: lo, Max: hi, Category: cat, Trigger: d.Trigger}, nil
}
