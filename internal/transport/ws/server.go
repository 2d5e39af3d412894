package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/DonatoReis/TestAgent-ML/internal/protocol"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/arena"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/curriculum"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/episode"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/motion"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
)

type Config struct {
	Tuning tuning.Tuning
	Layout arena.Layout
	// Params sit between the tuning curriculum and per-RESET params.
	Params   curriculum.Params
	Recorder env.Recorder
	// MaxSessions caps concurrent connections; 0 means unlimited.
	MaxSessions int
}

type Server struct {
	cfg Config
	log *log.Logger

	active   atomic.Int64
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	wg       sync.WaitGroup
	shutdown bool
}

func NewServer(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		conns: map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Active() int { return int(s.active.Load()) }

// Shutdown closes every live connection and waits for their handlers to
// finish, so running episodes are recorded as aborted. New connections are
// refused from here on.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if !s.track(conn) {
			_ = writeJSON(conn, protocol.NewError(protocol.ErrBusy, "server shutting down"))
			return
		}
		defer s.untrack(conn)

		n := s.active.Add(1)
		defer s.active.Add(-1)
		if s.cfg.MaxSessions > 0 && int(n) > s.cfg.MaxSessions {
			_ = writeJSON(conn, protocol.NewError(protocol.ErrBusy, "session limit reached"))
			return
		}

		c := s.handshake(conn)
		if c == nil {
			return
		}
		defer c.sess.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if !c.send(ctx, c.handle(msg)) {
				break
			}
		}
		cancel()
		<-done
		s.log.Printf("agent=%s disconnected after %d episodes", c.agentID, c.episodes)
	}
}

// conn is one training-loop connection and its environment.
type conn struct {
	s        *Server
	agentID  string
	sess     *env.Session
	out      chan []byte
	step     int
	episodes int
}

func (s *Server) handshake(ws *websocket.Conn) *conn {
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrProtoBadRequest, "expected HELLO"))
		return nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrProtoBadRequest, "bad protocol_version"))
		return nil
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}

	agentID := hello.AgentName + "-" + uuid.NewString()[:8]
	sess, err := env.NewSession(env.Options{
		Tuning:   s.cfg.Tuning,
		Layout:   s.cfg.Layout,
		AgentID:  agentID,
		Recorder: s.cfg.Recorder,
		Logger:   s.log,
	})
	if err != nil {
		s.log.Printf("agent=%s session: %v", agentID, err)
		_ = writeJSON(ws, protocol.NewError(protocol.ErrInternal, "session setup failed"))
		return nil
	}

	t := s.cfg.Tuning.Timing
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		AgentID:         agentID,
		ObsSize:         sess.ObservationSize(),
		ObsWindow:       s.cfg.Tuning.Observation.Window,
		Timing:          protocol.TimingInfo{PhysicsHz: t.PhysicsHz, DecisionPeriod: t.DecisionPeriod, FrameHz: t.FrameHz},
		Action:          protocol.ActionSpec{Continuous: []string{"move", "turn"}, Discrete: []string{"jump"}},
		Arena:           s.cfg.Layout.Name,
		TuningDigest:    sess.TuningDigest(),
	}
	if err := writeJSON(ws, welcome); err != nil {
		return nil
	}
	s.log.Printf("agent=%s connected session=%s", agentID, welcome.SessionID)
	return &conn{s: s, agentID: agentID, sess: sess, out: make(chan []byte, 8)}
}

func (c *conn) send(ctx context.Context, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		c.s.log.Printf("agent=%s marshal: %v", c.agentID, err)
		return false
	}
	select {
	case c.out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// handle turns one client message into exactly one reply.
func (c *conn) handle(msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	switch base.Type {
	case protocol.TypeReset, protocol.TypeAct:
	default:
		return protocol.NewError(protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
	}
	if err := protocol.Validate(base.Type, msg); err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
	}
	if base.Type == protocol.TypeReset {
		return c.reset(msg)
	}
	return c.act(msg)
}

func (c *conn) reset(msg []byte) any {
	// Weights overlay the current ones so a partial object keeps the rest.
	w := c.sess.Controller().Weights()
	m := protocol.ResetMsg{Weights: &w}
	if err := json.Unmarshal(msg, &m); err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
	}
	if m.Weights != nil {
		if err := m.Weights.Validate(); err != nil {
			return protocol.NewError(protocol.ErrBadRequest, err.Error())
		}
	}
	params := c.s.cfg.Params.Merge(curriculum.Params(m.Params))
	obs := c.sess.Reset(m.Seed, params, m.Weights)
	c.step = 0
	c.episodes++
	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		EpisodeID:       c.sess.EpisodeID(),
		Obs:             obs,
	}
}

func (c *conn) act(msg []byte) any {
	var m protocol.ActMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
	}
	if math.IsNaN(m.Move) || math.IsNaN(m.Turn) {
		return protocol.NewError(protocol.ErrBadRequest, "action is NaN")
	}
	if m.Step != c.step {
		return protocol.NewError(protocol.ErrStale, fmt.Sprintf("step %d, want %d", m.Step, c.step))
	}
	res, err := c.sess.Step(motion.Action{Move: m.Move, Turn: m.Turn, Jump: m.Jump})
	switch {
	case errors.Is(err, episode.ErrNotStarted):
		return protocol.NewError(protocol.ErrBadRequest, "no episode; send RESET")
	case errors.Is(err, episode.ErrEpisodeDone):
		return protocol.NewError(protocol.ErrEpisodeDone, "episode finished; send RESET")
	case err != nil:
		c.s.log.Printf("agent=%s step: %v", c.agentID, err)
		return protocol.NewError(protocol.ErrInternal, "step failed")
	}
	c.step++
	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		EpisodeID:       c.sess.EpisodeID(),
		Step:            c.step,
		T:               c.sess.Controller().Now(),
		Obs:             res.Observation,
		Reward:          res.Reward,
		Done:            res.Done,
		Outcome:         string(res.Outcome),
		Generation:      res.Decision.Generation,
		TimedOut:        res.Decision.TimedOut,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
