package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"punchd/internal/relay"
)

func main() {
	var (
		count      int
		outputFile string
		serial     string
		pins       int
		dupRatio   float64
		wrongRatio float64
	)
	flag.IntVar(&count, "count", 100, "number of punches to generate")
	flag.StringVar(&outputFile, "output", "punchd.forward.jsonl", "output file")
	flag.StringVar(&serial, "serial", "ZK-0001", "terminal serial to stamp on events")
	flag.IntVar(&pins, "pins", 20, "number of distinct employee pins")
	flag.Float64Var(&dupRatio, "dup-ratio", 0.1, "fraction of events emitted twice (retransmissions)")
	flag.Float64Var(&wrongRatio, "wrong-ratio", 0.15, "fraction of events with an inverted direction")
	flag.Parse()

	if err := generate(count, outputFile, serial, pins, dupRatio, wrongRatio); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func generate(count int, outputFile, serial string, pins int, dupRatio, wrongRatio float64) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	base := time.Now().UTC().Add(-8 * time.Hour).Truncate(time.Second)

	enc := json.NewEncoder(file)
	emitted := 0
	for i := 0; i < count; i++ {
		pin := fmt.Sprintf("%04d", 1+rng.Intn(pins))
		ts := base.Add(time.Duration(i*45) * time.Second)

		// alternate IN/OUT per slot, invert a fraction of them
		status := "0" // Check-In
		if i%2 == 1 {
			status = "1" // Check-Out
		}
		if rng.Float64() < wrongRatio {
			if status == "0" {
				status = "1"
			} else {
				status = "0"
			}
		}

		var m relay.Message
		m.TerminalSerial = serial
		m.Table = "ATTLOG"
		m.Data.Pin = pin
		m.Data.Time = ts.Format("2006-01-02 15:04:05")
		m.Data.Status = status
		m.Data.Verify = "1" // fingerprint

		if err := enc.Encode(&m); err != nil {
			return fmt.Errorf("encode punch %d: %w", i+1, err)
		}
		emitted++
		if rng.Float64() < dupRatio {
			if err := enc.Encode(&m); err != nil {
				return fmt.Errorf("encode duplicate %d: %w", i+1, err)
			}
			emitted++
		}
	}

	log.Printf("generated %d events to %s", emitted, outputFile)
	return nil
}
