package main

import (
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
	"github.com/DonatoReis/TestAgent-ML/internal/transport/ws"
)

func obsWith(window int, distA, distB, vx float64) []float64 {
	obs := make([]float64, 3+frameFloats*window+6)
	f := obs[3+frameFloats*(window-1):]
	f[offVel] = vx
	f[offDistA] = distA
	f[offDistB] = distB
	return obs
}

func TestPolicy_SteersByDistance(t *testing.T) {
	p := newPolicy(1, 2)
	p.reset()
	a := p.act(obsWith(2, 10, 20, 1), 0)
	if a.Move != 1 || a.Turn != 0 || a.Step != 0 {
		t.Fatalf("first act=%+v", a)
	}
	a = p.act(obsWith(2, 10, 20, 1), 1)
	if a.Turn == 0 || a.Move != 0.5 {
		t.Fatalf("no progress should turn: %+v", a)
	}
	a = p.act(obsWith(2, 1, 9, 1), 2)
	if !p.phaseB || a.Move != 1 {
		t.Fatalf("reaching A should switch to B: %+v phaseB=%v", a, p.phaseB)
	}
	a = p.act(obsWith(2, 3, 8, 1), 3)
	if a.Move != 1 {
		t.Fatalf("B distance shrank: %+v", a)
	}
}

func TestPolicy_ShortObservation(t *testing.T) {
	p := newPolicy(1, 6)
	p.reset()
	if a := p.act(make([]float64, 4), 7); a.Move != 0 || a.Step != 7 {
		t.Fatalf("act=%+v", a)
	}
}

func TestClient_RunsEpisodeAgainstServer(t *testing.T) {
	l, err := arena.DefaultLayout()
	if err != nil {
		t.Fatalf("DefaultLayout: %v", err)
	}
	s := ws.NewServer(ws.Config{Tuning: tuning.Defaults(), Layout: l}, log.New(io.Discard, "", 0))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	c := &client{conn: conn}
	w, err := c.hello("t")
	if err != nil {
		t.Fatalf("hello: %v", err)
	}
	res, err := c.run(newPolicy(1, w.ObsWindow), 11, 40)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.id == "" || res.steps == 0 || res.steps > 40 {
		t.Fatalf("res=%+v", res)
	}
}
