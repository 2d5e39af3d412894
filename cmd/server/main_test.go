package main

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	persistlog "github.com/DonatoReis/TestAgent-ML/internal/persistence/log"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
	"github.com/DonatoReis/TestAgent-ML/internal/transport/ws"
)

func TestMux_HealthAndMetrics(t *testing.T) {
	t.Setenv("NAV_INDEX_BACKEND", "")
	l, err := arena.DefaultLayout()
	if err != nil {
		t.Fatalf("DefaultLayout: %v", err)
	}
	idx, err := openIndex(t.TempDir(), false)
	if err != nil {
		t.Fatalf("openIndex: %v", err)
	}
	defer idx.Close()
	el := persistlog.NewEpisodeLogger(t.TempDir())
	defer el.Close()
	_ = el.Record(env.Record{Kind: env.KindEpisodeStart, EpisodeID: "e1"})
	_ = el.Record(env.Record{Kind: env.KindEpisodeEnd, EpisodeID: "e1", End: &env.EndInfo{Outcome: "FALL"}})
	lg := log.New(io.Discard, "", 0)
	wsSrv := ws.NewServer(ws.Config{Tuning: tuning.Defaults(), Layout: l}, lg)
	srv := httptest.NewServer(newMux(wsSrv, idx, el, tuning.Defaults(), l, lg))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}
	if code, body := get("/healthz"); code != 200 || body != "ok" {
		t.Fatalf("healthz: %d %q", code, body)
	}
	_, body := get("/metrics")
	for _, want := range []string{`nav_sessions{arena="two_rooms"} 0`, "nav_index_dropped_total 0", "nav_log_lines_total 2", "nav_log_episodes_total 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestOpenIndex_Backends(t *testing.T) {
	t.Setenv("NAV_INDEX_BACKEND", "off")
	if idx, err := openIndex(t.TempDir(), false); err != nil || idx != nil {
		t.Fatalf("off: idx=%v err=%v", idx, err)
	}
	t.Setenv("NAV_INDEX_BACKEND", "d1")
	if _, err := openIndex(t.TempDir(), false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	if idx, err := openIndex(t.TempDir(), true); err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("NAV_X", "false")
	if envBool("NAV_X", true) {
		t.Fatalf("want false")
	}
	t.Setenv("NAV_X", "maybe")
	if !envBool("NAV_X", true) {
		t.Fatalf("bad value should keep default")
	}
}
