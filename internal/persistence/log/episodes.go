package log

import (
	"path/filepath"
	"sync/atomic"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
)

const EpisodePrefix = "episodes"

// EpisodeLogger writes one JSONL entry per telemetry record (compressed).
type EpisodeLogger struct {
	w     *JSONLZstdWriter
	ended atomic.Uint64
}

func NewEpisodeLogger(dataDir string) *EpisodeLogger {
	return &EpisodeLogger{w: NewJSONLZstdWriter(EpisodeDir(dataDir), EpisodePrefix)}
}

// EpisodeDir is where the episode logs of dataDir live.
func EpisodeDir(dataDir string) string { return filepath.Join(dataDir, "episodes") }

type EpisodeLogStats struct {
	WriterStats
	Episodes uint64 `json:"episodes"`
}

// Stats is safe on a nil logger.
func (l *EpisodeLogger) Stats() EpisodeLogStats {
	if l == nil {
		return EpisodeLogStats{}
	}
	return EpisodeLogStats{WriterStats: l.w.Stats(), Episodes: l.ended.Load()}
}

// Record ends the zstd frame at each episode end so a finished episode is
// readable at once and a crash loses at most the running ones.
func (l *EpisodeLogger) Record(r env.Record) error {
	if err := l.w.Write(r); err != nil {
		return err
	}
	if r.Kind != env.KindEpisodeEnd {
		return nil
	}
	l.ended.Add(1)
	return l.w.Sync()
}

func (l *EpisodeLogger) Close() error { return l.w.Close() }
