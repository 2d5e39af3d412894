package main

import (
	"math"
	"math/rand"

	"github.com/DonatoReis/TestAgent-ML/internal/protocol"
)

// frame offsets inside one window entry: pos(3) vel(3) grounded distA distB
const (
	frameFloats = 9
	offVel      = 3
	offDistA    = 7
	offDistB    = 8
)

// policy steers by the distance to the active target: keep heading while it
// shrinks, sweep the turn direction while it does not, hop when stuck.
type policy struct {
	rng    *rand.Rand
	window int

	reachA   float64
	phaseB   bool
	prevDist float64
	dir      float64
	stale    int
}

func newPolicy(seed int64, window int) *policy {
	return &policy{rng: rand.New(rand.NewSource(seed)), window: window, reachA: 1.5}
}

func (p *policy) reset() {
	p.phaseB = false
	p.prevDist = math.Inf(1)
	p.dir = 1
	p.stale = 0
}

// latest returns the newest window frame of obs.
func (p *policy) latest(obs []float64) []float64 {
	i := 3 + frameFloats*(p.window-1)
	if p.window <= 0 || i+frameFloats > len(obs) {
		return nil
	}
	return obs[i : i+frameFloats]
}

func (p *policy) act(obs []float64, step int) protocol.ActMsg {
	a := protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Step: step}
	f := p.latest(obs)
	if f == nil {
		return a
	}
	if !p.phaseB && f[offDistA] > 0 && f[offDistA] < p.reachA {
		p.phaseB = true
		p.prevDist = math.Inf(1)
	}
	d := f[offDistA]
	if p.phaseB {
		d = f[offDistB]
	}

	if d < p.prevDist-0.05 {
		p.stale = 0
		a.Move = 1
	} else {
		p.stale++
		a.Move = 0.5
		a.Turn = p.dir
		if p.stale%20 == 0 {
			p.dir = -p.dir
		}
	}
	p.prevDist = d

	speed := math.Hypot(f[offVel], f[offVel+2])
	if a.Move > 0 && speed < 0.1 && p.rng.Float64() < 0.3 {
		a.Jump = true
	}
	return a
}
