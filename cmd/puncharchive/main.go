package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"punchd/internal/archive"
	"punchd/internal/store"
)

func main() {
	var (
		mode           string
		pebbleDir      string
		snapshotDir    string
		trailPath      string
		manifestSource string
		bootstrap      string
		topicManifest  string
		topicTrail     string
		trailSource    string
	)
	flag.StringVar(&mode, "mode", "snapshot", "snapshot|restore")
	flag.StringVar(&pebbleDir, "pebble-dir", "./data/punchd", "pebble data directory")
	flag.StringVar(&snapshotDir, "snapshot-dir", "./snapshots", "snapshot directory")
	flag.StringVar(&trailPath, "trail", "./trail/punchd.jsonl", "audit trail file")
	flag.StringVar(&manifestSource, "manifest-source", "file", "file|kafka")
	flag.StringVar(&bootstrap, "bootstrap", "localhost:9092", "kafka bootstrap servers")
	flag.StringVar(&topicManifest, "topic-manifest", "punchd.snapshots", "manifest topic (compacted)")
	flag.StringVar(&topicTrail, "topic-trail", "punchd.trail", "trail topic for kafka replay")
	flag.StringVar(&trailSource, "trail-source", "file", "file|kafka")
	flag.Parse()

	switch mode {
	case "snapshot":
		if err := runSnapshot(pebbleDir, snapshotDir, trailPath, manifestSource, bootstrap, topicManifest); err != nil {
			log.Fatalf("snapshot failed: %v", err)
		}
	case "restore":
		if err := runRestore(pebbleDir, snapshotDir, trailPath, manifestSource, trailSource, bootstrap, topicManifest, topicTrail); err != nil {
			log.Fatalf("restore failed: %v", err)
		}
	default:
		log.Fatalf("unknown mode %q", mode)
	}
}

func runSnapshot(pebbleDir, snapshotDir, trailPath, manifestSource, bootstrap, topicManifest string) error {
	st, err := store.NewPebbleStore(pebbleDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	snapshotID := time.Now().UTC().Format("20060102T150405Z")
	snap := archive.NewFilesystemSnapshotter(snapshotDir)
	if err := snap.WriteSnapshot(snapshotID, st); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	offset, err := trailLineCount(trailPath)
	if err != nil {
		return err
	}

	pub := buildPublisher(snapshotDir, manifestSource, bootstrap, topicManifest)
	if err := pub.PublishLatest(snapshotID, offset); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	log.Printf("snapshot %s written, trail offset %d", snapshotID, offset)
	return nil
}

func runRestore(pebbleDir, snapshotDir, trailPath, manifestSource, trailSource, bootstrap, topicManifest, topicTrail string) error {
	st, err := store.NewPebbleStore(pebbleDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var reader archive.Reader
	if manifestSource == "kafka" {
		reader = archive.NewKafkaManifestReader(brokerList(bootstrap), topicManifest, "punchd-manifest-latest")
	} else {
		reader = archive.NewFilesystemManifest(snapshotDir)
	}

	r := archive.NewRestorer(st, reader, snapshotDir)
	started := time.Now()

	if trailSource == "kafka" {
		m, err := reader.ReadLatest()
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		res := r.ReplayTrailKafka(brokerList(bootstrap), topicTrail, m.LastTrailOffset)
		if res.Error != nil {
			return res.Error
		}
		log.Printf("restore done in %s: applied=%d skipped=%d", time.Since(started), res.Applied, res.Skipped)
		return nil
	}

	res, err := r.RestoreAndReplay(trailPath)
	if err != nil {
		return err
	}
	log.Printf("restore done in %s: applied=%d skipped=%d", time.Since(started), res.Applied, res.Skipped)
	return nil
}

func buildPublisher(snapshotDir, manifestSource, bootstrap, topicManifest string) archive.Publisher {
	fs := archive.NewFilesystemManifest(snapshotDir)
	switch manifestSource {
	case "kafka":
		return archive.NewKafkaManifest(bootstrap, topicManifest, "punchd-manifest-latest")
	case "both":
		return archive.MultiPublisher(fs, archive.NewKafkaManifest(bootstrap, topicManifest, "punchd-manifest-latest"))
	default:
		return fs
	}
}

func trailLineCount(path string) (int64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open trail: %w", err)
	}
	defer f.Close()
	var n int64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("scan trail: %w", err)
	}
	return n, nil
}

func brokerList(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}
