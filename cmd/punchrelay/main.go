package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"punchd/internal/audit"
	"punchd/internal/directory"
	"punchd/internal/ingest"
	"punchd/internal/metrics"
	"punchd/internal/relay"
	"punchd/internal/store"
)

func main() {
	var (
		bootstrap     string
		groupID       string
		topic         string
		pebbleDir     string
		directoryFile string
		trailDir      string
		trailFile     string
		httpAddr      string
		dedupHours    int
	)
	flag.StringVar(&bootstrap, "bootstrap", "localhost:9092", "kafka bootstrap servers")
	flag.StringVar(&groupID, "group-id", "punchrelay", "consumer group id")
	flag.StringVar(&topic, "topic", "punchd.forward", "store-and-forward topic")
	flag.StringVar(&pebbleDir, "pebble-dir", "./data/punchd", "pebble data directory")
	flag.StringVar(&directoryFile, "directory", "", "directory JSON file")
	flag.StringVar(&trailDir, "trail-dir", "./trail", "audit trail directory")
	flag.StringVar(&trailFile, "trail-file", "punchd.jsonl", "audit trail filename")
	flag.StringVar(&httpAddr, "http", ":9091", "http listen for /metrics")
	flag.IntVar(&dedupHours, "dedup-window", 24, "idempotency window hours")
	flag.Parse()

	st, err := store.NewPebbleStore(pebbleDir)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	var dir directory.Directory
	if directoryFile != "" {
		d, err := directory.LoadFile(directoryFile)
		if err != nil {
			log.Fatalf("load directory: %v", err)
		}
		dir = d
	} else {
		log.Printf("no -directory file given, starting with an empty directory")
		dir = directory.NewStaticDirectory()
	}

	trail, err := audit.NewFileWriter(trailDir, trailFile)
	if err != nil {
		log.Fatalf("open trail: %v", err)
	}

	met := metrics.NewRegistry()
	go func() {
		http.Handle("/metrics", met.Handler())
		_ = http.ListenAndServe(httpAddr, nil)
	}()

	pipeline := ingest.New(st, dir, trail, met, time.Duration(dedupHours)*time.Hour)
	consumer, err := relay.NewConsumer(bootstrap, groupID, topic, pipeline, dir)
	if err != nil {
		log.Fatalf("relay: %v", err)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	log.Printf("punchrelay started bootstrap=%s topic=%s group=%s", bootstrap, topic, groupID)
	if err := consumer.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("relay run: %v", err)
	}
}
