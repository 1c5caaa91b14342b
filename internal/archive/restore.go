package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"

	"punchd/internal/audit"
	"punchd/internal/model"
	"punchd/internal/store"
)

type Restorer struct {
	st              store.Store
	manifestReader  Reader
	snapshotBaseDir string
}

func NewRestorer(st store.Store, mr Reader, snapshotBaseDir string) *Restorer {
	return &Restorer{st: st, manifestReader: mr, snapshotBaseDir: snapshotBaseDir}
}

type RestoreResult struct {
	Applied int
	Skipped int
	Error   error
}

// RestoreFromSnapshot replaces the store contents with a snapshot dump.
func (r *Restorer) RestoreFromSnapshot(snapshotID string) error {
	if snapshotID == "" {
		return nil
	}
	path := filepath.Join(r.snapshotBaseDir, snapshotID, "records.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("restore: snapshot not found at %s, skipping", path)
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	var dump []model.AttendanceRecord
	if err := json.Unmarshal(data, &dump); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if err := r.st.LoadAll(dump); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	log.Printf("restore: loaded %d records from snapshot %s", len(dump), snapshotID)
	return nil
}

// applyEvent replays one trail event onto the store. Created events carry
// the full record; resolution events re-apply the terminal status. Events
// that touch nothing recoverable are skipped, not errors.
func (r *Restorer) applyEvent(ev audit.Event) (bool, error) {
	switch ev.Kind {
	case audit.KindCreated:
		if ev.Record == nil {
			return false, nil
		}
		err := r.st.Insert(*ev.Record)
		if errors.Is(err, model.ErrDuplicateKey) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("insert %s: %w", ev.RecordID, err)
		}
		return true, nil
	case audit.KindValidated, audit.KindRejected, audit.KindCorrected:
		_, err := r.st.Transition(ev.TenantID, ev.RecordID, func(rec *model.AttendanceRecord) error {
			rec.Status = model.ValidationStatus(ev.Status)
			rec.Note = ev.Reason
			resolved := time.Unix(ev.TS, 0).UTC()
			rec.ResolvedAt = &resolved
			if ev.Kind == audit.KindCorrected {
				rec.Type = ev.Type
			}
			return nil
		})
		if errors.Is(err, model.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("transition %s: %w", ev.RecordID, err)
		}
		return true, nil
	default:
		// duplicate/debounced/flagged events change no durable state
		return false, nil
	}
}

// ReplayTrail applies trail events from a JSONL file past fromOffset.
func (r *Restorer) ReplayTrail(trailPath string, fromOffset int64) RestoreResult {
	file, err := os.Open(trailPath)
	if err != nil {
		return RestoreResult{Error: fmt.Errorf("open trail: %w", err)}
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	applied, skipped := 0, 0
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if int64(lineNum) <= fromOffset {
			continue
		}
		var ev audit.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("unmarshal line %d: %w", lineNum, err)}
		}
		ok, err := r.applyEvent(ev)
		if err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("apply line %d: %w", lineNum, err)}
		}
		if ok {
			applied++
		} else {
			skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("scan trail: %w", err)}
	}
	return RestoreResult{Applied: applied, Skipped: skipped}
}

// ReplayTrailKafka consumes trail events from a Kafka topic (partition 0)
// and applies them. fromOffset is the message index within the partition.
func (r *Restorer) ReplayTrailKafka(brokers []string, topic string, fromOffset int64) RestoreResult {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer rd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	applied, skipped := 0, 0
	idx := int64(0)
	for {
		m, err := rd.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("read kafka: %w", err)}
		}
		idx++
		if idx <= fromOffset {
			continue
		}
		var ev audit.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("unmarshal event: %w", err)}
		}
		ok, err := r.applyEvent(ev)
		if err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("apply: %w", err)}
		}
		if ok {
			applied++
		} else {
			skipped++
		}
	}
	return RestoreResult{Applied: applied, Skipped: skipped}
}

// RestoreAndReplay restores the latest manifest's snapshot and replays the
// file trail past its offset.
func (r *Restorer) RestoreAndReplay(trailPath string) (RestoreResult, error) {
	m, err := r.manifestReader.ReadLatest()
	if err != nil {
		return RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}
	if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
		return RestoreResult{}, fmt.Errorf("restore snapshot: %w", err)
	}
	result := r.ReplayTrail(trailPath, m.LastTrailOffset)
	return result, result.Error
}
