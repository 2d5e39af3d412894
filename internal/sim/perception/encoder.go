// Package perception casts a fixed fan of distance probes around the agent and
// encodes each reading as hit flag, normalized distance and a one-hot surface
// category. The encoder is stateless; probe order is band order, then yaw
// index ascending, so the layout never changes between ticks.
package perception

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/worldq"
)

// FloatsPerProbe is hit + distance + one slot per categorized surface.
const FloatsPerProbe = 2 + len(worldq.Categorized)

type Band struct {
	Name     string  `yaml:"name" json:"name"`
	PitchDeg float64 `yaml:"pitch_deg" json:"pitch_deg"`
	Count    int     `yaml:"count" json:"count"`
}

type Config struct {
	Bands  []Band  `yaml:"bands" json:"bands"`
	FOVDeg float64 `yaml:"fov_deg" json:"fov_deg"`
	Range  float64 `yaml:"range" json:"range"`
	// OriginHeight lifts the probe origin above the agent's feet.
	OriginHeight float64 `yaml:"origin_height" json:"origin_height"`
	// Mask is the set of surfaces probes can see. Zero means all.
	Mask worldq.Mask `yaml:"-" json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Bands: []Band{
			{Name: "low", PitchDeg: -15, Count: 7},
			{Name: "level", PitchDeg: 0, Count: 17},
			{Name: "high", PitchDeg: 15, Count: 17},
		},
		FOVDeg:       70,
		Range:        10,
		OriginHeight: 0.5,
	}
}

func (c Config) Validate() error {
	if c.Range <= 0 {
		return fmt.Errorf("perception: range must be > 0 (got %v)", c.Range)
	}
	for _, b := range c.Bands {
		if b.Count < 0 {
			return fmt.Errorf("perception: band %q has negative count", b.Name)
		}
	}
	return nil
}

// Probe is one decoded reading.
type Probe struct {
	Hit      bool
	Distance float64 // normalized to [0,1]; 1 on miss
	Category worldq.SurfaceCategory
}

type Encoder struct {
	cfg   Config
	total int
}

func NewEncoder(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mask == 0 {
		cfg.Mask = worldq.MaskAll
	}
	n := 0
	for _, b := range cfg.Bands {
		n += b.Count
	}
	return &Encoder{cfg: cfg, total: n}, nil
}

// Probes is the number of probes in the fan.
func (e *Encoder) Probes() int { return e.total }

// Len is the length of the encoded vector.
func (e *Encoder) Len() int { return e.total * FloatsPerProbe }

// yawOffsets returns the relative yaw of each probe in a band.
func (e *Encoder) yawOffsets(n int) []float64 {
	out := make([]float64, n)
	if n <= 1 {
		return out
	}
	step := e.cfg.FOVDeg / float64(n-1)
	start := -e.cfg.FOVDeg / 2
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Scan casts every probe from OriginHeight above feet. A nil world yields
// all-miss readings.
func (e *Encoder) Scan(w worldq.World, feet mgl64.Vec3, yawDeg float64) []Probe {
	out := make([]Probe, 0, e.total)
	origin := feet.Add(geom.Up.Mul(e.cfg.OriginHeight))
	for _, b := range e.cfg.Bands {
		for _, off := range e.yawOffsets(b.Count) {
			p := Probe{Distance: 1}
			if w != nil {
				dir := geom.Direction(yawDeg+off, b.PitchDeg)
				if hit, ok := w.Raycast(origin, dir, e.cfg.Range, e.cfg.Mask); ok {
					p.Hit = true
					p.Distance = mgl64.Clamp(hit.Distance/e.cfg.Range, 0, 1)
					p.Category = hit.Category
				}
			}
			out = append(out, p)
		}
	}
	return out
}

// Encode appends the encoded fan to dst and returns the extended slice.
func (e *Encoder) Encode(dst []float64, w worldq.World, feet mgl64.Vec3, yawDeg float64) []float64 {
	for _, p := range e.Scan(w, feet, yawDeg) {
		dst = AppendProbe(dst, p)
	}
	return dst
}

func AppendProbe(dst []float64, p Probe) []float64 {
	var onehot [len(worldq.Categorized)]float64
	hit := 0.0
	if p.Hit {
		hit = 1
		if s := p.Category.Slot(); s >= 0 {
			onehot[s] = 1
		}
	}
	dst = append(dst, hit, p.Distance)
	return append(dst, onehot[:]...)
}
