package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "github.com/DonatoReis/TestAgent-ML/internal/persistence/log"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
)

func main() {
	var (
		eventsDir  = flag.String("events", "./data/episodes", "dir containing episodes-*.jsonl.zst")
		episodeID  = flag.String("episode", "", "episode id to verify (empty = every finished episode)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults when missing)")
		arenaPath  = flag.String("arena", "", "path to arena.yaml (default: embedded two-room arena)")
		force      = flag.Bool("force", false, "replay even when the tuning digest differs from the log")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	layout, err := arena.DefaultLayout()
	if strings.TrimSpace(*arenaPath) != "" {
		layout, err = arena.LoadLayout(*arenaPath)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load arena:", err)
		os.Exit(1)
	}

	var eps []persistlog.Episode
	if *episodeID != "" {
		ep, err := persistlog.LoadEpisode(*eventsDir, *episodeID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load episode:", err)
			os.Exit(1)
		}
		eps = append(eps, ep)
	} else {
		eps, err = loadAll(*eventsDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load episodes:", err)
			os.Exit(1)
		}
	}
	if len(eps) == 0 {
		fmt.Fprintln(os.Stderr, "no finished episodes found in", filepath.Clean(*eventsDir))
		os.Exit(1)
	}

	v := verifier{tune: tune, layout: layout, force: *force}
	var checked int
	for _, ep := range eps {
		n, err := v.verify(ep)
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay %s: %v\n", ep.ID, err)
			os.Exit(1)
		}
		checked += n
	}
	fmt.Printf("replay ok: episodes=%d decisions=%d\n", len(eps), checked)
}
