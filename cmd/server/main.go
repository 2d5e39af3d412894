package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "github.com/DonatoReis/TestAgent-ML/internal/persistence/log"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
	"github.com/DonatoReis/TestAgent-ML/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		arenaPath   = flag.String("arena", "", "path to arena.yaml (default: embedded two-room arena)")
		envFile     = flag.String("env_file", ".env", "dotenv file with NAV_PARAM_<key> curriculum overrides")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite episode index")
		disableLog  = flag.Bool("disable_log", false, "disable the episode telemetry log")
		maxSessions = flag.Int("max_sessions", 64, "max concurrent training connections (0 = unlimited)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	layout, err := loadLayout(*arenaPath)
	if err != nil {
		logger.Fatalf("load arena: %v", err)
	}

	params, err := curriculum.FromEnvFile(*envFile)
	if err != nil {
		logger.Fatalf("load curriculum env: %v", err)
	}
	if len(params) > 0 {
		logger.Printf("curriculum overrides: %v", params)
	}

	var recs env.MultiRecorder
	var el *persistlog.EpisodeLogger
	if !*disableLog {
		el = persistlog.NewEpisodeLogger(*dataDir)
		defer el.Close()
		recs = append(recs, el)
	}
	idx, err := openIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index tuning: %v", err)
		}
		recs = append(recs, idx)
	}

	wsLogger := log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)
	wsSrv := ws.NewServer(ws.Config{
		Tuning:      tune,
		Layout:      layout,
		Params:      params,
		Recorder:    recs,
		MaxSessions: *maxSessions,
	}, wsLogger)

	ctx, cancel := signalContext()
	defer cancel()

	mux := newMux(wsSrv, idx, el, tune, layout, logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s arena=%s tuning=%s obs_window=%d", *addr, layout.Name, tune.Digest()[:12], tune.Observation.Window)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Websocket conns are hijacked and outlive srv.Shutdown; drain them
	// before the deferred recorder closes run.
	ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel3()
	if err := wsSrv.Shutdown(ctx3); err != nil {
		logger.Printf("ws shutdown: %v", err)
	}
	logger.Printf("stopped")
}

func loadLayout(path string) (arena.Layout, error) {
	if strings.TrimSpace(path) == "" {
		return arena.DefaultLayout()
	}
	return arena.LoadLayout(path)
}

func newMux(wsSrv *ws.Server, idx runtimeIndex, el *persistlog.EpisodeLogger, tune tuning.Tuning, layout arena.Layout, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP nav_sessions Current number of training connections.\n")
		fmt.Fprintf(rw, "# TYPE nav_sessions gauge\n")
		fmt.Fprintf(rw, "nav_sessions{arena=%q} %d\n", layout.Name, wsSrv.Active())

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP nav_index_queue_depth Index writer backlog depth.\n")
			fmt.Fprintf(rw, "# TYPE nav_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "nav_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP nav_index_dropped_total Records dropped by a full index queue.\n")
			fmt.Fprintf(rw, "# TYPE nav_index_dropped_total counter\n")
			fmt.Fprintf(rw, "nav_index_dropped_total %d\n", st.DropTotal)
			fmt.Fprintf(rw, "# HELP nav_index_failed_total Index transactions that failed.\n")
			fmt.Fprintf(rw, "# TYPE nav_index_failed_total counter\n")
			fmt.Fprintf(rw, "nav_index_failed_total %d\n", st.FailTotal)
		}
		if el != nil {
			st := el.Stats()
			fmt.Fprintf(rw, "# HELP nav_log_lines_total Telemetry lines written to the episode log.\n")
			fmt.Fprintf(rw, "# TYPE nav_log_lines_total counter\n")
			fmt.Fprintf(rw, "nav_log_lines_total %d\n", st.Lines)
			fmt.Fprintf(rw, "# HELP nav_log_episodes_total Episodes closed in the episode log.\n")
			fmt.Fprintf(rw, "# TYPE nav_log_episodes_total counter\n")
			fmt.Fprintf(rw, "nav_log_episodes_total %d\n", st.Episodes)
		}
	})

	if envBool("NAV_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/tuning", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"digest": tune.Digest(), "tuning": tune, "arena": layout.Name})
		})
	} else {
		logger.Printf("admin endpoints disabled (NAV_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("NAV_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
