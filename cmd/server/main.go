package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pointcraft.ai/internal/persistence/indexdb"
	persistlog "pointcraft.ai/internal/persistence/log"
	"pointcraft.ai/internal/sim/tuning"
	"pointcraft.ai/internal/sim/world"
	"pointcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "level seed")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		schemasDir = flag.String("schemas", "./schemas", "message schema directory (empty to disable validation)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite telemetry index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	w, err := world.New(world.WorldConfig{ID: *worldID, Seed: *seed, Tuning: tune}, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tickLog := persistlog.NewTickWriter(filepath.Join(worldDir, "events"))
	defer tickLog.Close()
	w.SetTickLogger(tickLog)

	captureLog := persistlog.NewCaptureWriter(filepath.Join(worldDir, "events"))
	defer captureLog.Close()
	w.SetCaptureLogger(captureLog)

	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		defer func() {
			if n := idx.Drops(); n > 0 {
				logger.Printf("index: %d records dropped under load (JSONL logs are complete)", n)
			}
		}()
		w.SetEpisodeSink(idx)
		// The index also mirrors ticks and captures for querying; the JSONL
		// logs stay authoritative.
		w.SetTickLogger(multiTick{tickLog, idx})
		w.SetCaptureLogger(multiCapture{captureLog, idx})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world loop: %v", err)
		}
	}()

	wsrv, err := ws.NewServer(w, logger, strings.TrimSpace(*schemasDir))
	if err != nil {
		logger.Fatalf("ws server: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsrv.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (world=%s seed=%d points=%d agents=%d)",
			*addr, *worldID, *seed, tune.PointCount, tune.AgentCount)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	w.Stop()
}

type multiTick struct {
	a, b world.TickLogger
}

func (m multiTick) WriteTick(e world.TickLogEntry) error {
	err := m.a.WriteTick(e)
	if err2 := m.b.WriteTick(e); err == nil {
		err = err2
	}
	return err
}

type multiCapture struct {
	a, b world.CaptureLogger
}

func (m multiCapture) WriteCapture(r world.CaptureRecord) error {
	err := m.a.WriteCapture(r)
	if err2 := m.b.WriteCapture(r); err == nil {
		err = err2
	}
	return err
}
