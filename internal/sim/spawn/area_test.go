package spawn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/simtest"
)

func TestSample_InsideAndSnapped(t *testing.T) {
	w := simtest.NewFlatWorld()
	w.FloorY = 0.25
	a := Area{Center: mgl64.Vec3{10, 0, -5}, Width: 4, Length: 2}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		p, yaw := a.Sample(rng, w)
		if math.Abs(p.X()-10) > 2 || math.Abs(p.Z()+5) > 1 {
			t.Fatalf("outside rectangle: %v", p)
		}
		if math.Abs(p.Y()-0.25) > 1e-9 {
			t.Fatalf("not snapped: %v", p)
		}
		if yaw < 0 || yaw >= 360 {
			t.Fatalf("yaw=%v", yaw)
		}
	}
}

func TestSample_NoGroundFallsBackToCenter(t *testing.T) {
	w := simtest.NewFlatWorld()
	w.NoFloor = true
	a := Area{Center: mgl64.Vec3{0, 2, 0}, Width: 1, Length: 1, Height: 0.5}
	p, _ := a.Sample(rand.New(rand.NewSource(3)), w)
	if p.Y() != 2.5 {
		t.Fatalf("y=%v want 2.5", p.Y())
	}
}

func TestSample_DeterministicInSeed(t *testing.T) {
	a := Area{Width: 8, Length: 6}
	p1, y1 := a.Sample(rand.New(rand.NewSource(7)), nil)
	p2, y2 := a.Sample(rand.New(rand.NewSource(7)), nil)
	if p1 != p2 || y1 != y2 {
		t.Fatalf("same seed differs: %v/%v vs %v/%v", p1, y1, p2, y2)
	}
}

func TestSample_RotatedArea(t *testing.T) {
	// rotated 90 degrees the long side runs along X
	a := Area{YawDeg: 90, Width: 0, Length: 10}
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		p, _ := a.Sample(rng, nil)
		if math.Abs(p.Z()) > 1e-9 {
			t.Fatalf("z=%v want 0", p.Z())
		}
	}
}
