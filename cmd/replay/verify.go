package main

import (
	"fmt"
	"math"

	persistlog "github.com/DonatoReis/TestAgent-ML/internal/persistence/log"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
)

const posTolerance = 1e-9

type verifier struct {
	tune   tuning.Tuning
	layout arena.Layout
	force  bool
}

// verify re-simulates ep from its seed and logged actions and checks every
// decision's reward, generation and position. It returns the decision count.
func (v verifier) verify(ep persistlog.Episode) (int, error) {
	if ep.Start == nil || ep.Start.Start == nil {
		return 0, fmt.Errorf("no start record")
	}
	st := ep.Start.Start
	if !v.force && st.TuningDigest != v.tune.Digest() {
		return 0, fmt.Errorf("tuning digest mismatch: log=%s local=%s", st.TuningDigest, v.tune.Digest())
	}
	if st.Arena != v.layout.Name {
		return 0, fmt.Errorf("arena mismatch: log=%s local=%s", st.Arena, v.layout.Name)
	}

	sess, err := env.NewSession(env.Options{Tuning: v.tune, Layout: v.layout})
	if err != nil {
		return 0, err
	}
	w := st.Weights
	sess.Reset(st.Seed, st.Params, &w)

	n := 0
	for _, r := range ep.Records {
		if r.Kind != env.KindDecision || r.Decision == nil {
			continue
		}
		d := r.Decision
		if d.Index != n {
			return n, fmt.Errorf("decision index %d, want %d", d.Index, n)
		}
		res, err := sess.Step(motion.Action{Move: d.Action.Move, Turn: d.Action.Turn, Jump: d.Action.Jump})
		if err != nil {
			return n, fmt.Errorf("decision %d: %w", n, err)
		}
		if res.Reward != d.Reward {
			return n, fmt.Errorf("reward mismatch at decision %d: got=%v want=%v", n, res.Reward, d.Reward)
		}
		if res.Decision.Generation != d.Generation {
			return n, fmt.Errorf("generation mismatch at decision %d: got=%d want=%d", n, res.Decision.Generation, d.Generation)
		}
		pos := sess.Controller().Snapshot().Body.Position
		for i := 0; i < 3; i++ {
			if math.Abs(pos[i]-d.Pos[i]) > posTolerance {
				return n, fmt.Errorf("position mismatch at decision %d: got=%v want=%v", n, pos, d.Pos)
			}
		}
		n++
	}

	if ep.End != nil && ep.End.End != nil {
		e := ep.End.End
		c := sess.Controller()
		if e.Outcome != "ABORTED" && c.Outcome() != e.Outcome {
			return n, fmt.Errorf("outcome mismatch: got=%s want=%s", c.Outcome(), e.Outcome)
		}
		if e.Outcome != "ABORTED" && c.Return() != e.Return {
			return n, fmt.Errorf("return mismatch: got=%v want=%v", c.Return(), e.Return)
		}
	}
	return n, nil
}

// loadAll groups every finished episode under dir, in start order.
func loadAll(dir string) ([]persistlog.Episode, error) {
	byID := map[string]*persistlog.Episode{}
	var order []string
	err := persistlog.ScanRecords(dir, func(r env.Record) error {
		ep := byID[r.EpisodeID]
		if r.Kind == env.KindEpisodeStart {
			rc := r
			ep = &persistlog.Episode{ID: r.EpisodeID, Start: &rc}
			byID[r.EpisodeID] = ep
			order = append(order, r.EpisodeID)
			return nil
		}
		if ep == nil {
			return nil
		}
		if r.Kind == env.KindEpisodeEnd {
			rc := r
			ep.End = &rc
			return nil
		}
		ep.Records = append(ep.Records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]persistlog.Episode, 0, len(order))
	for _, id := range order {
		if ep := byID[id]; ep.End != nil {
			out = append(out, *ep)
		}
	}
	return out, nil
}
