package scenery

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/geom"
)

type DoorConfig struct {
	OpenHeight float64 `yaml:"open_height" json:"open_height"`
	Speed      float64 `yaml:"speed" json:"speed"`
}

type PlateConfig struct {
	Drop  float64 `yaml:"drop" json:"drop"`
	Speed float64 `yaml:"speed" json:"speed"`
	Wait  float64 `yaml:"wait_s" json:"wait_s"`
}

func DefaultDoorConfig() DoorConfig   { return DoorConfig{OpenHeight: 4, Speed: 5} }
func DefaultPlateConfig() PlateConfig { return PlateConfig{Drop: 0.15, Speed: 2, Wait: 5} }

// Door slides straight up by OpenHeight when opened.
type Door struct {
	closed mgl64.Vec3
	open   mgl64.Vec3
	tw     *Tween
}

func NewDoor(closed mgl64.Vec3, cfg DoorConfig) *Door {
	return &Door{
		closed: closed,
		open:   closed.Add(geom.Up.Mul(cfg.OpenHeight)),
		tw:     NewTween(closed, cfg.Speed),
	}
}

func (d *Door) Open()  { d.tw.MoveTo(d.open) }
func (d *Door) Close() { d.tw.MoveTo(d.closed) }
func (d *Door) Reset() { d.tw.Reset(d.closed) }

// Offset is the door's displacement from its closed position.
func (d *Door) Offset() mgl64.Vec3 { return d.tw.Pos().Sub(d.closed) }

func (d *Door) IsOpen() bool { return d.tw.Pos() == d.open }

func (d *Door) Step(now, dt float64) { d.tw.Step(now, dt) }

// Plate is a pressure plate that sinks while stood on and opens its door.
// After contact ends it waits, then rises and closes the door.
type Plate struct {
	cfg     PlateConfig
	rest    mgl64.Vec3
	lowered mgl64.Vec3
	tw      *Tween
	door    *Door
	contact bool
}

func NewPlate(rest mgl64.Vec3, cfg PlateConfig, door *Door) *Plate {
	return &Plate{
		cfg:     cfg,
		rest:    rest,
		lowered: rest.Sub(geom.Up.Mul(cfg.Drop)),
		tw:      NewTween(rest, cfg.Speed),
		door:    door,
	}
}

func (p *Plate) Enter() {
	if p.contact {
		return
	}
	p.contact = true
	p.tw.MoveTo(p.lowered)
	if p.door != nil {
		p.door.Open()
	}
}

func (p *Plate) Exit(now float64) {
	p.contact = false
	p.tw.WaitThenMoveTo(now+p.cfg.Wait, p.rest)
}

func (p *Plate) Step(now, dt float64) {
	if p.tw.Step(now, dt) && !p.contact && p.door != nil {
		p.door.Close()
	}
	if p.door != nil {
		p.door.Step(now, dt)
	}
}

func (p *Plate) Reset() {
	p.contact = false
	p.tw.Reset(p.rest)
	if p.door != nil {
		p.door.Reset()
	}
}

func (p *Plate) Offset() mgl64.Vec3 { return p.tw.Pos().Sub(p.rest) }
func (p *Plate) Pressed() bool      { return p.contact }
func (p *Plate) State() TweenState  { return p.tw.State() }
