package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonatoReis/TestAgent-ML/internal/persistence/indexdb"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
)

type runtimeIndex interface {
	env.Recorder
	Close() error
	UpsertTuning(t tuning.Tuning) error
	Stats() indexdb.Stats
}

func openIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("NAV_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(IndexPath(dataDir))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported NAV_INDEX_BACKEND=%q", backend)
	}
}

// IndexPath is where the server keeps the episode index under dataDir.
func IndexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "episodes.sqlite")
}
