package reward

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
)

// Inactivity penalizes the agent for staying put. It runs on the frame
// cadence and measures net displacement from an anchor: while the agent stays
// within the threshold of the anchor, time accumulates. Leaving that radius
// moves the anchor to the current position and clears the timer. Once the
// configured duration is reached the penalty is returned and the monitor
// re-anchors.
type Inactivity struct {
	timer  float64
	anchor mgl64.Vec3
}

func (m *Inactivity) Reset(pos mgl64.Vec3) {
	m.timer = 0
	m.anchor = pos
}

// Frame advances the monitor by dt and returns the penalty due, if any.
func (m *Inactivity) Frame(pos mgl64.Vec3, dt float64, w Weights) float64 {
	if geom.Distance(pos, m.anchor) >= w.InactivityDistance {
		m.Reset(pos)
		return 0
	}
	m.timer += dt
	if m.timer >= w.InactivityDuration {
		m.Reset(pos)
		return w.Inactivity
	}
	return 0
}

func (m *Inactivity) Timer() float64 { return m.timer }
