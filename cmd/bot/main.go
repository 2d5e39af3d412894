package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"github.com/DonatoReis/TestAgent-ML/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "agent name")
		episodes = flag.Int("episodes", 10, "episodes to run")
		seed     = flag.Int64("seed", 1, "first episode seed; episode i uses seed+i")
		maxSteps = flag.Int("max_steps", 3000, "decisions per episode before giving up")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c := &client{conn: conn}
	w, err := c.hello(*name)
	if err != nil {
		logger.Fatalf("handshake: %v", err)
	}
	logger.Printf("WELCOME agent_id=%s obs_size=%d window=%d arena=%s", w.AgentID, w.ObsSize, w.ObsWindow, w.Arena)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	pol := newPolicy(*seed, w.ObsWindow)
	for i := 0; i < *episodes; i++ {
		select {
		case <-stop:
			return
		default:
		}
		res, err := c.run(pol, *seed+int64(i), *maxSteps)
		if err != nil {
			logger.Fatalf("episode %d: %v", i, err)
		}
		logger.Printf("episode=%s seed=%d outcome=%s return=%.4f steps=%d generations=%d",
			res.id, *seed+int64(i), res.outcome, res.ret, res.steps, res.generations)
	}
}

type client struct {
	conn *websocket.Conn
}

type episodeResult struct {
	id          string
	outcome     string
	ret         float64
	steps       int
	generations int
}

func (c *client) hello(name string) (protocol.WelcomeMsg, error) {
	var w protocol.WelcomeMsg
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentName: name}
	if err := c.conn.WriteJSON(hello); err != nil {
		return w, err
	}
	err := c.read(protocol.TypeWelcome, &w)
	return w, err
}

// read decodes the next message into out, turning ERROR into an error.
func (c *client) read(want string, out any) error {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return err
	}
	if base.Type == protocol.TypeError {
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	if base.Type != want {
		return fmt.Errorf("got %s, want %s", base.Type, want)
	}
	return json.Unmarshal(msg, out)
}

func (c *client) run(pol *policy, seed int64, maxSteps int) (episodeResult, error) {
	var res episodeResult
	reset := protocol.ResetMsg{Type: protocol.TypeReset, ProtocolVersion: protocol.Version, Seed: seed}
	if err := c.conn.WriteJSON(reset); err != nil {
		return res, err
	}
	var obs protocol.ObsMsg
	if err := c.read(protocol.TypeObs, &obs); err != nil {
		return res, err
	}
	res.id = obs.EpisodeID
	pol.reset()
	for !obs.Done && obs.Step < maxSteps {
		if err := c.conn.WriteJSON(pol.act(obs.Obs, obs.Step)); err != nil {
			return res, err
		}
		obs = protocol.ObsMsg{}
		if err := c.read(protocol.TypeObs, &obs); err != nil {
			return res, err
		}
		res.ret += obs.Reward
		res.steps = obs.Step
		res.generations = obs.Generation
	}
	res.outcome = obs.Outcome
	if res.outcome == "" {
		res.outcome = "RUNNING"
	}
	return res, nil
}
