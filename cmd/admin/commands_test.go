package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DonatoReis/TestAgent-ML/internal/persistence/indexdb"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/episode"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episodes.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	rets := []float64{1, 3, -0.5}
	outcomes := []string{"SUCCESS", "SUCCESS", "FALL"}
	for i, r := range rets {
		id := string(rune('a' + i))
		_ = idx.Record(env.Record{Kind: env.KindEpisodeStart, EpisodeID: id, AgentID: "bot", UnixMS: int64(i),
			Start: &env.StartInfo{Seed: int64(i), Arena: "two_rooms"}})
		_ = idx.Record(env.Record{Kind: env.KindEpisodeEnd, EpisodeID: id, UnixMS: int64(i) + 1,
			End: &env.EndInfo{Outcome: episode.Outcome(outcomes[i]), Return: r, Decisions: 5}})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestSummarize(t *testing.T) {
	s := summarize([]float64{3, 1, 2}, map[string]int{"SUCCESS": 3})
	if s.Episodes != 3 || s.Mean != 2 || s.Min != 1 || s.Max != 3 || s.Median != 2 {
		t.Fatalf("stats=%+v", s)
	}
	if math.Abs(s.StdDev-1) > 1e-12 {
		t.Fatalf("stddev=%v", s.StdDev)
	}
	if s := summarize(nil, nil); s.Episodes != 0 || s.Mean != 0 {
		t.Fatalf("empty=%+v", s)
	}
	if s := summarize([]float64{4}, nil); s.StdDev != 0 || s.Median != 4 {
		t.Fatalf("single=%+v", s)
	}
}

func TestEpisodesAndStatsCommands(t *testing.T) {
	db := seedIndex(t)
	out, err := run(t, "--db", db, "episodes", "--limit", "2")
	if err != nil {
		t.Fatalf("episodes: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "c ") {
		t.Fatalf("episodes output:\n%s", out)
	}

	out, err = run(t, "--db", db, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var s ReturnStats
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("stats json: %v\n%s", err, out)
	}
	if s.Episodes != 3 || s.Max != 3 || s.Min != -0.5 || s.Outcomes["SUCCESS"] != 2 || s.Outcomes["FALL"] != 1 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(good, []byte("timing:\n  physics_hz: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "validate", "--tuning", good)
	if err != nil || !strings.Contains(out, "tuning ok") {
		t.Fatalf("validate good: %v\n%s", err, out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("timing:\n  physics_hz: fast\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "validate", "--tuning", bad); err == nil {
		t.Fatalf("expected schema error")
	}

	noTargets := filepath.Join(dir, "arena.yaml")
	if err := os.WriteFile(noTargets, []byte("name: empty\nboxes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "validate", "--arena", noTargets); err == nil {
		t.Fatalf("expected missing target error")
	}
	if _, err := run(t, "validate"); err == nil {
		t.Fatalf("expected nothing-to-validate error")
	}
}

func TestEpisodesCommand_MissingIndexFails(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "typo.sqlite")
	if _, err := run(t, "--db", db, "episodes"); err == nil {
		t.Fatalf("expected error for a missing index")
	}
	if _, err := run(t, "--db", db, "stats"); err == nil {
		t.Fatalf("expected error for a missing index")
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Fatalf("admin created %s", db)
	}
}
