// Package observation keeps the sliding window of recent kinematic/objective
// frames and assembles the policy input vector.
package observation

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrObservationSize = errors.New("observation: declared size does not match layout")

// FloatsPerFrame is position(3) + velocity(3) + grounded + distanceA + distanceB.
const FloatsPerFrame = 9

type Frame struct {
	Position  mgl64.Vec3
	Velocity  mgl64.Vec3
	Grounded  bool
	DistanceA float64
	DistanceB float64
}

func (f Frame) append(dst []float64) []float64 {
	g := 0.0
	if f.Grounded {
		g = 1
	}
	return append(dst,
		f.Position.X(), f.Position.Y(), f.Position.Z(),
		f.Velocity.X(), f.Velocity.Y(), f.Velocity.Z(),
		g, f.DistanceA, f.DistanceB,
	)
}

// Window is a fixed-capacity FIFO. It always holds exactly Cap frames.
type Window struct {
	frames []Frame
	head   int // index of the oldest frame
}

func NewWindow(n int) (*Window, error) {
	if n <= 0 {
		return nil, fmt.Errorf("observation: window must be > 0 (got %d)", n)
	}
	return &Window{frames: make([]Frame, n)}, nil
}

func (w *Window) Cap() int { return len(w.frames) }

// Reset pads the window with zeroed frames.
func (w *Window) Reset() {
	for i := range w.frames {
		w.frames[i] = Frame{}
	}
	w.head = 0
}

// Push evicts the oldest frame and appends f.
func (w *Window) Push(f Frame) {
	w.frames[w.head] = f
	w.head = (w.head + 1) % len(w.frames)
}

// Frames returns the window oldest first.
func (w *Window) Frames() []Frame {
	out := make([]Frame, 0, len(w.frames))
	out = append(out, w.frames[w.head:]...)
	return append(out, w.frames[:w.head]...)
}

// Size is the float length of an observation vector.
func Size(window, perceptionLen int) int {
	return 3 + window*FloatsPerFrame + perceptionLen
}

// Aggregator concatenates the current position, the window and a perception
// fan into a vector of constant length.
type Aggregator struct {
	win           *Window
	perceptionLen int
	size          int
}

// NewAggregator fails with ErrObservationSize when declared is non-zero and
// differs from the derived layout.
func NewAggregator(window, perceptionLen, declared int) (*Aggregator, error) {
	w, err := NewWindow(window)
	if err != nil {
		return nil, err
	}
	size := Size(window, perceptionLen)
	if declared != 0 && declared != size {
		return nil, fmt.Errorf("%w: declared %d, layout %d (window %d, perception %d)",
			ErrObservationSize, declared, size, window, perceptionLen)
	}
	return &Aggregator{win: w, perceptionLen: perceptionLen, size: size}, nil
}

func (a *Aggregator) Size() int       { return a.size }
func (a *Aggregator) Window() *Window { return a.win }
func (a *Aggregator) Reset()          { a.win.Reset() }
func (a *Aggregator) Push(f Frame)    { a.win.Push(f) }

// Vector builds the observation. A perception slice of the wrong length is
// truncated or zero-padded so the result length never varies.
func (a *Aggregator) Vector(current mgl64.Vec3, perception []float64) []float64 {
	out := make([]float64, 0, a.size)
	out = append(out, current.X(), current.Y(), current.Z())
	for _, f := range a.win.Frames() {
		out = f.append(out)
	}
	if len(perception) > a.perceptionLen {
		perception = perception[:a.perceptionLen]
	}
	out = append(out, perception...)
	for len(out) < a.size {
		out = append(out, 0)
	}
	return out
}
