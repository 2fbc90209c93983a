package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"pointcraft.ai/internal/sim/world"
)

// SQLiteIndex is a secondary read model for telemetry queries (per-tick
// digests, capture history, episode results). It never feeds back into the
// sim; writes go through a single writer goroutine so the world loop only
// pays for a channel send.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	drops  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqCapture
	reqEpisode
)

type req struct {
	kind reqKind

	tick    world.TickLogEntry
	capture world.CaptureRecord
	episode world.EpisodeResult
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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
		// Sized for capture bursts (episode resets release every point at
		// once) without stalling the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is a fine
	// durability tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
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
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS captures (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			episode INTEGER NOT NULL,
			point INTEGER NOT NULL,
			from_agent TEXT,
			to_agent TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_captures_point_tick ON captures(point, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_captures_to_tick ON captures(to_agent, tick);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			episode INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			end_tick INTEGER NOT NULL,
			score INTEGER NOT NULL,
			captured INTEGER NOT NULL,
			visited INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (episode, agent_id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.drops.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteCapture(rec world.CaptureRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqCapture, capture: rec}:
	default:
		s.drops.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteEpisode(res world.EpisodeResult) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEpisode, episode: res}:
	default:
		s.drops.Add(1)
	}
	return nil
}

// Drops reports how many records were discarded because the writer queue was
// full. A non-zero value means the index is lossy for that run; the JSONL logs
// still hold everything.
func (s *SQLiteIndex) Drops() uint64 {
	return s.drops.Load()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,actions,raw_json) VALUES(?,?,?,?,?,?)`)
	insertCapture, _ := s.db.Prepare(`INSERT OR REPLACE INTO captures(tick,seq,episode,point,from_agent,to_agent) VALUES(?,?,?,?,?,?)`)
	insertEpisode, _ := s.db.Prepare(`INSERT OR REPLACE INTO episodes(episode,agent_id,end_tick,score,captured,visited,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCapture, insertEpisode} {
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

		lastCaptureTick uint64
		captureSeq      int
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
		_ = tx.Commit()
		tx = nil
	}
	defer commit()

	flushTimer := time.NewTicker(500 * time.Millisecond)
	defer flushTimer.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				return
			}
			begin()
			if tx == nil {
				continue
			}
			switch r.kind {
			case reqTick:
				raw, _ := json.Marshal(r.tick)
				_, _ = tx.Stmt(insertTick).Exec(
					r.tick.Tick, r.tick.Digest,
					len(r.tick.Joins), len(r.tick.Leaves), len(r.tick.Actions),
					string(raw),
				)
			case reqCapture:
				if r.capture.Tick != lastCaptureTick {
					lastCaptureTick = r.capture.Tick
					captureSeq = 0
				}
				_, _ = tx.Stmt(insertCapture).Exec(
					r.capture.Tick, captureSeq, r.capture.Episode,
					r.capture.Point, r.capture.From, r.capture.To,
				)
				captureSeq++
			case reqEpisode:
				_, _ = tx.Stmt(insertEpisode).Exec(
					r.episode.Episode, r.episode.AgentID, r.episode.EndTick,
					r.episode.Score, r.episode.Captured, r.episode.Visited,
					time.Now().UTC().Format(time.RFC3339Nano),
				)
			}
			opCount++
			if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		case <-flushTimer.C:
			commit()
		}
	}
}
