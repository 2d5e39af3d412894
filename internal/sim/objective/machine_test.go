package objective

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func vec(x, y, z float64) *mgl64.Vec3 {
	v := mgl64.Vec3{x, y, z}
	return &v
}

func newMachine(t *testing.T, cfg Config, cps ...mgl64.Vec3) *Machine {
	t.Helper()
	if cps == nil {
		cps = []mgl64.Vec3{}
	}
	m, err := New(Targets{A: vec(0, 0, 20), B: vec(0, 0, 40), Checkpoints: cps}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Restart(mgl64.Vec3{})
	return m
}

func count(out Outcome, k GrantKind) int {
	n := 0
	for _, g := range out.Grants {
		if g.Kind == k {
			n++
		}
	}
	return n
}

func TestNew_ConfigErrors(t *testing.T) {
	if _, err := New(Targets{B: vec(0, 0, 1), Checkpoints: []mgl64.Vec3{}}, DefaultConfig()); !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("missing A: err=%v", err)
	}
	if _, err := New(Targets{A: vec(0, 0, 1), B: vec(0, 0, 2)}, DefaultConfig()); !errors.Is(err, ErrMissingCheckpoints) {
		t.Fatalf("nil checkpoints: err=%v", err)
	}
	cfg := DefaultConfig()
	cfg.PenaltyInterpolation = "cubic"
	if _, err := New(Targets{A: vec(0, 0, 1), B: vec(0, 0, 2), Checkpoints: []mgl64.Vec3{}}, cfg); err == nil {
		t.Fatalf("expected interpolation error")
	}
}

func TestEvaluate_ProgressOnlyWhenCloser(t *testing.T) {
	m := newMachine(t, DefaultConfig())
	out := m.Evaluate(mgl64.Vec3{0, 0, 2}, 0.1)
	if len(out.Grants) != 1 || math.Abs(out.Grants[0].Amount-0.2) > 1e-12 {
		t.Fatalf("grants=%+v", out.Grants)
	}
	out = m.Evaluate(mgl64.Vec3{0, 0, 1}, 0.1)
	if count(out, GrantProgress) != 0 {
		t.Fatalf("moving away must not grant progress: %+v", out.Grants)
	}
	if m.State().PrevDistance != 19 {
		t.Fatalf("prev distance not updated: %v", m.State().PrevDistance)
	}
}

func TestEvaluate_TransitionIsOneShot(t *testing.T) {
	m := newMachine(t, DefaultConfig())
	out := m.Evaluate(mgl64.Vec3{0, 0, 19}, 0.1)
	if !out.ReachedAThisTick || count(out, GrantDoor) != 1 {
		t.Fatalf("transition: %+v", out)
	}
	st := m.State()
	if st.Phase != PhaseReachB || st.PhaseTime != 0 || st.PrevDistance != 21 {
		t.Fatalf("state after transition: %+v", st)
	}
	for i := 0; i < 5; i++ {
		out = m.Evaluate(mgl64.Vec3{0, 0, 19.5}, 0.1)
		if out.ReachedAThisTick || count(out, GrantDoor) != 0 {
			t.Fatalf("door re-fired on tick %d: %+v", i, out)
		}
	}
}

func TestEvaluate_FinalEndsAndFreezes(t *testing.T) {
	m := newMachine(t, DefaultConfig())
	m.Evaluate(mgl64.Vec3{0, 0, 19}, 0.1)
	out := m.Evaluate(mgl64.Vec3{0, 0, 39}, 0.1)
	if !out.Succeeded || count(out, GrantFinal) != 1 {
		t.Fatalf("final: %+v", out)
	}
	if out := m.Evaluate(mgl64.Vec3{0, 0, 39.5}, 0.1); len(out.Grants) != 0 || out.Succeeded {
		t.Fatalf("succeeded machine must be inert: %+v", out)
	}
}

func TestEvaluate_CheckpointOncePerEpisode(t *testing.T) {
	m := newMachine(t, DefaultConfig(), mgl64.Vec3{5, 0, 0})
	near, far := mgl64.Vec3{5, 0, 0.5}, mgl64.Vec3{5, 0, 3}
	if out := m.Evaluate(near, 0.1); count(out, GrantCheckpoint) != 1 {
		t.Fatalf("first entry: %+v", out)
	}
	m.Evaluate(far, 0.1)
	if out := m.Evaluate(near, 0.1); count(out, GrantCheckpoint) != 0 {
		t.Fatalf("re-entry granted again: %+v", out)
	}
	m.Restart(mgl64.Vec3{})
	if out := m.Evaluate(near, 0.1); count(out, GrantCheckpoint) != 1 {
		t.Fatalf("restart should re-arm checkpoints: %+v", out)
	}
}

func TestEvaluate_TimeoutPenaltyInterpolation(t *testing.T) {
	for _, tc := range []struct {
		mode string
		want float64
	}{
		{InterpClamped, -0.5},
		{InterpExtrapolate, -0.1 + 1.5*(-0.4)},
	} {
		cfg := DefaultConfig()
		cfg.PenaltyInterpolation = tc.mode
		m := newMachine(t, cfg)
		out := m.Evaluate(mgl64.Vec3{}, 45)
		if !out.TimedOut || len(out.Grants) != 1 || out.Grants[0].Kind != GrantTimeout {
			t.Fatalf("%s: outcome=%+v", tc.mode, out)
		}
		if math.Abs(out.TimeRatio-1.5) > 1e-12 {
			t.Fatalf("%s: ratio=%v", tc.mode, out.TimeRatio)
		}
		if math.Abs(out.Grants[0].Amount-tc.want) > 1e-12 {
			t.Fatalf("%s: penalty=%v want %v", tc.mode, out.Grants[0].Amount, tc.want)
		}
	}
}

func TestEvaluate_TimeoutNeedsStrictExcess(t *testing.T) {
	m := newMachine(t, DefaultConfig())
	if out := m.Evaluate(mgl64.Vec3{}, 30); out.TimedOut {
		t.Fatalf("elapsed == budget must not time out")
	}
	if out := m.Evaluate(mgl64.Vec3{}, 0.01); !out.TimedOut {
		t.Fatalf("expected timeout past the budget")
	}
}

func TestRestart_ClearsState(t *testing.T) {
	m := newMachine(t, DefaultConfig(), mgl64.Vec3{0, 0, 19})
	m.Evaluate(mgl64.Vec3{0, 0, 19}, 1)
	m.Restart(mgl64.Vec3{0, 0, 4})
	st := m.State()
	if st.Phase != PhaseReachA || st.ReachedA || st.PhaseTime != 0 || st.PrevDistance != 16 || st.Reached[0] {
		t.Fatalf("state=%+v", st)
	}
}
