package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/DonatoReis/TestAgent-ML/internal/persistence/indexdb"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
)

type rootOpts struct {
	dataDir string
	dbPath  string
}

func (o *rootOpts) index() (*indexdb.SQLiteIndex, error) {
	path := strings.TrimSpace(o.dbPath)
	if path == "" {
		path = filepath.Join(o.dataDir, "index", "episodes.sqlite")
	}
	return indexdb.OpenSQLiteReadOnly(path)
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{}
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect training episodes and validate configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&o.dbPath, "db", "", "sqlite index path (default: <data>/index/episodes.sqlite)")

	root.AddCommand(episodesCmd(o), statsCmd(o), validateCmd(), tuningCmd())
	return root
}

func episodesCmd(o *rootOpts) *cobra.Command {
	var f indexdb.Filter
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "List indexed episodes, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := o.index()
			if err != nil {
				return err
			}
			defer idx.Close()
			eps, err := idx.ListEpisodes(ctxOf(cmd), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(eps)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EPISODE\tAGENT\tSEED\tOUTCOME\tRETURN\tDECISIONS\tRESETS\tSTARTED")
			for _, e := range eps {
				outcome := e.Outcome
				if outcome == "" {
					outcome = "RUNNING"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.4f\t%d\t%d\t%s\n",
					e.EpisodeID, e.AgentID, e.Seed, outcome, e.Return, e.Decisions, e.Generations,
					time.UnixMilli(e.StartedMS).UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&f.AgentID, "agent", "", "agent id filter")
	cmd.Flags().StringVar(&f.Outcome, "outcome", "", "outcome filter (SUCCESS, FALL, ABORTED)")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "result limit (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// ReturnStats summarizes episode returns.
type ReturnStats struct {
	Episodes int            `json:"episodes"`
	Outcomes map[string]int `json:"outcomes"`
	Mean     float64        `json:"mean"`
	StdDev   float64        `json:"std_dev"`
	Min      float64        `json:"min"`
	Median   float64        `json:"median"`
	Max      float64        `json:"max"`
}

func summarize(returns []float64, outcomes map[string]int) ReturnStats {
	s := ReturnStats{Episodes: len(returns), Outcomes: outcomes}
	if len(returns) == 0 {
		return s
	}
	xs := append([]float64(nil), returns...)
	sort.Float64s(xs)
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		s.StdDev = 0
	}
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	s.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
	return s
}

func statsCmd(o *rootOpts) *cobra.Command {
	var f indexdb.Filter
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Return statistics over finished episodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := o.index()
			if err != nil {
				return err
			}
			defer idx.Close()
			ctx := ctxOf(cmd)
			rets, err := idx.Returns(ctx, f)
			if err != nil {
				return err
			}
			counts, err := idx.OutcomeCounts(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summarize(rets, counts))
		},
	}
	cmd.Flags().StringVar(&f.AgentID, "agent", "", "agent id filter")
	cmd.Flags().StringVar(&f.Outcome, "outcome", "", "outcome filter")
	return cmd
}

func validateCmd() *cobra.Command {
	var tuningPath, arenaPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate tuning.yaml and arena.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if tuningPath == "" && arenaPath == "" {
				return fmt.Errorf("nothing to validate; pass --tuning and/or --arena")
			}
			if tuningPath != "" {
				t, err := tuning.Load(tuningPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tuning ok: %s digest=%s\n", tuningPath, t.Digest())
			}
			if arenaPath != "" {
				l, err := arena.LoadLayout(arenaPath)
				if err != nil {
					return err
				}
				if _, err := arena.New(l, tuning.Defaults().Motion.Gravity); err != nil {
					return err
				}
				tg, err := l.ObjectiveTargets()
				if err != nil {
					return err
				}
				if err := tg.Validate(); err != nil {
					return fmt.Errorf("%s: %w", arenaPath, err)
				}
				fmt.Fprintf(out, "arena ok: %s name=%s boxes=%d checkpoints=%d\n", arenaPath, l.Name, len(l.Boxes), len(tg.Checkpoints))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tuningPath, "tuning", "", "tuning.yaml path")
	cmd.Flags().StringVar(&arenaPath, "arena", "", "arena.yaml path")
	return cmd
}

func tuningCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "tuning",
		Short: "Print the tuning a running server uses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/tuning"
			cl := &http.Client{Timeout: 5 * time.Second}
			resp, err := cl.Get(u)
			if err != nil {
				return fmt.Errorf("request: %w", err)
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(b)))
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")
	return cmd
}
