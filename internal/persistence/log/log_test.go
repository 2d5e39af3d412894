package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 59, 0, 0, time.UTC)
	w := NewJSONLZstdWriter(dir, "x").WithClock(func() time.Time { return now })
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"a": 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	files, err := Files(dir, "x")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := []string{
		filepath.Join(dir, "x-2026-01-02-03.jsonl.zst"),
		filepath.Join(dir, "x-2026-01-02-04.jsonl.zst"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
	var lines []string
	for _, f := range files {
		if err := ScanFile(f, func(b []byte) error { lines = append(lines, string(b)); return nil }); err != nil {
			t.Fatalf("ScanFile: %v", err)
		}
	}
	if diff := cmp.Diff([]string{`{"a":1}`, `{"a":2}`}, lines); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "y").WithClock(clock)
		if err := w.Write(i); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	n := 0
	if err := ScanFile(filepath.Join(dir, "y-2026-05-01-10.jsonl.zst"), func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("lines=%d want 2", n)
	}
}

func TestEpisodeLogger_LoadEpisode(t *testing.T) {
	dir := t.TempDir()
	l := NewEpisodeLogger(dir)
	recs := []env.Record{
		{Kind: env.KindEpisodeStart, EpisodeID: "e1", Start: &env.StartInfo{Seed: 4}},
		{Kind: env.KindEpisodeStart, EpisodeID: "e2", Start: &env.StartInfo{Seed: 5}},
		{Kind: env.KindDecision, EpisodeID: "e1", Decision: &env.DecisionInfo{Index: 0, Reward: 0.25}},
		{Kind: env.KindDecision, EpisodeID: "e2", Decision: &env.DecisionInfo{Index: 0}},
		{Kind: env.KindEpisodeEnd, EpisodeID: "e1", End: &env.EndInfo{Outcome: "SUCCESS", Return: 3}},
	}
	for _, r := range recs {
		if err := l.Record(r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	// the end record syncs, so the file is readable before Close
	ep, err := LoadEpisode(filepath.Join(dir, "episodes"), "e1")
	if err != nil {
		t.Fatalf("LoadEpisode: %v", err)
	}
	if ep.Start.Start.Seed != 4 || len(ep.Records) != 1 || ep.Records[0].Decision.Reward != 0.25 {
		t.Fatalf("episode=%+v", ep)
	}
	if ep.End == nil || ep.End.End.Return != 3 {
		t.Fatalf("end=%+v", ep.End)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ep, err = LoadEpisode(filepath.Join(dir, "episodes"), "e2")
	if err != nil || ep.End != nil || len(ep.Records) != 1 {
		t.Fatalf("open episode=%+v err=%v", ep, err)
	}
	if _, err := LoadEpisode(filepath.Join(dir, "episodes"), "nope"); err == nil {
		t.Fatalf("expected missing episode error")
	}
}

func TestScanFile_MissingFile(t *testing.T) {
	if err := ScanFile(filepath.Join(t.TempDir(), "none.jsonl.zst"), func([]byte) error { return nil }); !os.IsNotExist(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestJSONLZstdWriter_SyncStartsNewFrame(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	w := NewJSONLZstdWriter(dir, "z").WithClock(clock)
	for i := 0; i < 3; i++ {
		if err := w.Write(i); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("idle Sync: %v", err)
	}
	if err := w.Write(3); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if diff := cmp.Diff(WriterStats{Lines: 4, Frames: 2, Opens: 2}, w.Stats()); diff != "" {
		t.Fatalf("stats (-want +got):\n%s", diff)
	}
	var lines []string
	if err := ScanFile(filepath.Join(dir, "z-2026-05-01-10.jsonl.zst"), func(b []byte) error {
		lines = append(lines, string(b))
		return nil
	}); err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if diff := cmp.Diff([]string{"0", "1", "2", "3"}, lines); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
}

func TestEpisodeLogger_Stats(t *testing.T) {
	var nilLogger *EpisodeLogger
	if st := nilLogger.Stats(); st.Lines != 0 || st.Episodes != 0 {
		t.Fatalf("nil stats=%+v", st)
	}
	l := NewEpisodeLogger(t.TempDir())
	defer l.Close()
	_ = l.Record(env.Record{Kind: env.KindEpisodeStart, EpisodeID: "e1"})
	_ = l.Record(env.Record{Kind: env.KindEpisodeEnd, EpisodeID: "e1", End: &env.EndInfo{Outcome: "FALL"}})
	st := l.Stats()
	if st.Lines != 2 || st.Episodes != 1 || st.Frames != 1 {
		t.Fatalf("stats=%+v", st)
	}
}
