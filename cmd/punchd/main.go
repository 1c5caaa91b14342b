package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"punchd/internal/audit"
	"punchd/internal/directory"
	"punchd/internal/gateway"
	"punchd/internal/ingest"
	"punchd/internal/metrics"
	"punchd/internal/store"
	"punchd/internal/sweep"
	"punchd/internal/workflow"
)

// Config holds CLI flags for the gateway server.
type Config struct {
	HTTPAddr         string
	StateBackend     string // memory|pebble
	PebbleDir        string
	DirectoryFile    string
	DedupWindowHours int
	TrailSink        string // file|kafka|both|none
	TrailDir         string
	TrailFile        string
	KafkaBootstrap   string
	TopicTrail       string
	SweepSpec        string
	SweepMaxAgeHours int
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("punchd failed: %v", err)
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.HTTPAddr, "http", ":8080", "http listen address")
	flag.StringVar(&cfg.StateBackend, "state-backend", "pebble", "state backend: memory|pebble")
	flag.StringVar(&cfg.PebbleDir, "pebble-dir", "./data/punchd", "pebble data directory")
	flag.StringVar(&cfg.DirectoryFile, "directory", "", "directory JSON file (terminals, employees, tenant configs)")
	flag.IntVar(&cfg.DedupWindowHours, "dedup-window", 24, "idempotency window hours")
	flag.StringVar(&cfg.TrailSink, "trail-sink", "file", "audit trail sink: file|kafka|both|none")
	flag.StringVar(&cfg.TrailDir, "trail-dir", "./trail", "audit trail directory")
	flag.StringVar(&cfg.TrailFile, "trail-file", "punchd.jsonl", "audit trail filename")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", "", "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&cfg.TopicTrail, "topic-trail", "punchd.trail", "kafka topic for the audit trail")
	flag.StringVar(&cfg.SweepSpec, "sweep-spec", "@every 15m", "cron spec for the stale-pending sweep")
	flag.IntVar(&cfg.SweepMaxAgeHours, "sweep-max-age", 24, "hours before a pending record counts as stale")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var dir directory.Directory
	if cfg.DirectoryFile != "" {
		d, err := directory.LoadFile(cfg.DirectoryFile)
		if err != nil {
			return err
		}
		dir = d
	} else {
		log.Printf("no -directory file given, starting with an empty directory")
		dir = directory.NewStaticDirectory()
	}

	trail, err := buildTrail(cfg)
	if err != nil {
		return err
	}

	met := metrics.NewRegistry()
	pipeline := ingest.New(st, dir, trail, met, time.Duration(cfg.DedupWindowHours)*time.Hour)
	flow := workflow.New(st, trail, met)
	srv := gateway.New(pipeline, flow, dir, met)

	sweeper := sweep.NewSweeper(st, met, time.Duration(cfg.SweepMaxAgeHours)*time.Hour)
	cronRunner, err := sweeper.Start(cfg.SweepSpec)
	if err != nil {
		return err
	}
	defer cronRunner.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.HTTPAddr) }()
	log.Printf("punchd started http=%s backend=%s", cfg.HTTPAddr, cfg.StateBackend)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Printf("received %s, shutting down", s)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func openStore(cfg Config) (store.Store, func(), error) {
	if cfg.StateBackend == "memory" {
		return store.NewMemoryStore(), func() {}, nil
	}
	ps, err := store.NewPebbleStore(cfg.PebbleDir)
	if err != nil {
		return nil, nil, err
	}
	return ps, func() { _ = ps.Close() }, nil
}

func buildTrail(cfg Config) (audit.Writer, error) {
	var writers []audit.Writer
	if cfg.TrailSink == "file" || cfg.TrailSink == "both" {
		fw, err := audit.NewFileWriter(cfg.TrailDir, cfg.TrailFile)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
	}
	if cfg.TrailSink == "kafka" || cfg.TrailSink == "both" {
		if cfg.KafkaBootstrap == "" {
			log.Fatalf("trail-sink %s requires -kafka-bootstrap", cfg.TrailSink)
		}
		writers = append(writers, audit.NewKafkaWriter(cfg.KafkaBootstrap, cfg.TopicTrail))
	}
	switch len(writers) {
	case 0:
		return audit.NopWriter{}, nil
	case 1:
		return writers[0], nil
	default:
		return audit.NewMultiWriter(writers...), nil
	}
}
