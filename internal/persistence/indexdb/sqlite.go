// Package indexdb is a queryable SQLite index of episode telemetry. The
// JSONL logs remain the source of truth; the index may drop rows under load.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DonatoReis/TestAgent-ML/internal/sim/env"
	"github.com/DonatoReis/TestAgent-ML/internal/sim/tuning"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db *sql.DB

	// mu guards ch against close while Record sends on it.
	mu     sync.RWMutex
	ch     chan env.Record
	closed bool
	wg     sync.WaitGroup
	once   sync.Once

	dropTotal atomic.Uint64
	failTotal atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
	FailTotal     uint64 `json:"fail_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan env.Record, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// OpenSQLiteReadOnly opens an existing index for queries. It never creates
// the file or touches the schema, and it starts no writer; Record drops.
func OpenSQLiteReadOnly(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	var v string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&v); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: not an episode index: %w", path, err)
	}
	return &SQLiteIndex{db: db, closed: true}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tunings (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			episode_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			arena TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			params_json TEXT NOT NULL,
			weights_json TEXT NOT NULL,
			started_ms INTEGER NOT NULL,
			ended_ms INTEGER,
			outcome TEXT,
			ep_return REAL,
			decisions INTEGER,
			generations INTEGER,
			sim_time REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_outcome ON episodes(outcome, started_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_agent ON episodes(agent_id, started_ms);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			episode_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			t REAL NOT NULL,
			reward REAL NOT NULL,
			phase TEXT NOT NULL,
			generation INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			PRIMARY KEY (episode_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS resets (
			episode_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			t REAL NOT NULL,
			penalty REAL NOT NULL,
			ratio REAL NOT NULL,
			PRIMARY KEY (episode_id, generation)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		if s.ch != nil && !s.closed {
			close(s.ch)
		}
		s.closed = true
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Record queues r for the writer goroutine. It never blocks; a full queue
// drops the record.
func (s *SQLiteIndex) Record(r env.Record) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropTotal.Add(1)
		return nil
	}
	select {
	case s.ch <- r:
	default:
		s.dropTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropTotal.Load(),
		FailTotal:     s.failTotal.Load(),
	}
}

// UpsertTuning stores the tuning values the server actually runs with.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(`INSERT OR REPLACE INTO tunings(digest,json,updated_at) VALUES(?,?,?)`, t.Digest(), string(b), now)
	return err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStart, _ := s.db.Prepare(`INSERT OR REPLACE INTO episodes(episode_id,agent_id,seed,arena,tuning_digest,params_json,weights_json,started_ms) VALUES(?,?,?,?,?,?,?,?)`)
	updateEnd, _ := s.db.Prepare(`UPDATE episodes SET ended_ms=?,outcome=?,ep_return=?,decisions=?,generations=?,sim_time=? WHERE episode_id=?`)
	insertDecision, _ := s.db.Prepare(`INSERT OR REPLACE INTO decisions(episode_id,idx,t,reward,phase,generation,x,y,z) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertReset, _ := s.db.Prepare(`INSERT OR REPLACE INTO resets(episode_id,generation,t,penalty,ratio) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertStart, updateEnd, insertDecision, insertReset} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failTotal.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failTotal.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.failTotal.Add(1)
			continue
		}
		switch r.Kind {
		case env.KindEpisodeStart:
			if r.Start == nil {
				break
			}
			params, _ := json.Marshal(r.Start.Params)
			weights, _ := json.Marshal(r.Start.Weights)
			exec(insertStart, r.EpisodeID, r.AgentID, r.Start.Seed, r.Start.Arena,
				r.Start.TuningDigest, string(params), string(weights), r.UnixMS)

		case env.KindDecision:
			if d := r.Decision; d != nil {
				exec(insertDecision, r.EpisodeID, d.Index, d.T, d.Reward, d.Phase, d.Generation,
					d.Pos[0], d.Pos[1], d.Pos[2])
			}

		case env.KindTimeoutReset:
			if to := r.Timeout; to != nil {
				exec(insertReset, r.EpisodeID, to.Generation, to.T, to.Penalty, to.Ratio)
			}

		case env.KindEpisodeEnd:
			if e := r.End; e != nil {
				exec(updateEnd, r.UnixMS, string(e.Outcome), e.Return, e.Decisions, e.Generations, e.T, r.EpisodeID)
			}
			// episode boundaries are cheap natural commit points
			commit()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

// EpisodeRow is one indexed episode. End fields are zero while running.
type EpisodeRow struct {
	EpisodeID    string  `json:"episode_id"`
	AgentID      string  `json:"agent_id"`
	Seed         int64   `json:"seed"`
	Arena        string  `json:"arena"`
	TuningDigest string  `json:"tuning_digest"`
	StartedMS    int64   `json:"started_ms"`
	EndedMS      int64   `json:"ended_ms,omitempty"`
	Outcome      string  `json:"outcome,omitempty"`
	Return       float64 `json:"return"`
	Decisions    int     `json:"decisions"`
	Generations  int     `json:"generations"`
	SimTime      float64 `json:"sim_time"`
}

type Filter struct {
	AgentID string
	Outcome string
	Limit   int
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.AgentID != "" {
		conds = append(conds, "agent_id=?")
		args = append(args, f.AgentID)
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome=?")
		args = append(args, f.Outcome)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEpisodes returns the newest episodes first.
func (s *SQLiteIndex) ListEpisodes(ctx context.Context, f Filter) ([]EpisodeRow, error) {
	where, args := f.where()
	q := `SELECT episode_id,agent_id,seed,arena,tuning_digest,started_ms,
		COALESCE(ended_ms,0),COALESCE(outcome,''),COALESCE(ep_return,0),COALESCE(decisions,0),
		COALESCE(generations,0),COALESCE(sim_time,0)
		FROM episodes` + where + ` ORDER BY started_ms DESC, episode_id`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EpisodeRow
	for rows.Next() {
		var e EpisodeRow
		if err := rows.Scan(&e.EpisodeID, &e.AgentID, &e.Seed, &e.Arena, &e.TuningDigest, &e.StartedMS,
			&e.EndedMS, &e.Outcome, &e.Return, &e.Decisions, &e.Generations, &e.SimTime); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Returns lists the returns of finished episodes matching f, oldest first.
func (s *SQLiteIndex) Returns(ctx context.Context, f Filter) ([]float64, error) {
	where, args := f.where()
	if where == "" {
		where = " WHERE outcome IS NOT NULL"
	} else {
		where += " AND outcome IS NOT NULL"
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ep_return FROM episodes`+where+` ORDER BY started_ms, episode_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// OutcomeCounts counts finished episodes per outcome.
func (s *SQLiteIndex) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM episodes WHERE outcome IS NOT NULL GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// ResetCount is the number of timeout resets recorded for an episode.
func (s *SQLiteIndex) ResetCount(ctx context.Context, episodeID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resets WHERE episode_id=?`, episodeID).Scan(&n)
	return n, err
}
