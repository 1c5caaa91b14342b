// Package audit appends attendance lifecycle events to durable sinks.
// The trail doubles as the replay source for archive restore.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/kafka-go"

	"punchd/internal/model"
)

// Event kinds recorded on the trail.
const (
	KindCreated   = "created"
	KindFlagged   = "flagged"
	KindDuplicate = "duplicate"
	KindDebounced = "debounced"
	KindValidated = "validated"
	KindRejected  = "rejected"
	KindCorrected = "corrected"
)

type Event struct {
	Kind       string          `json:"kind"`
	TenantID   string          `json:"tenantId"`
	RecordID   string          `json:"recordId,omitempty"`
	EmployeeID string          `json:"employeeId,omitempty"`
	Type       model.PunchType `json:"type,omitempty"`
	Status     string          `json:"status,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	TS         int64           `json:"ts"`
	// Record is attached to created events so the trail alone can rebuild
	// the store during restore replay.
	Record *model.AttendanceRecord `json:"record,omitempty"`
}

type Writer interface {
	Append(ev Event) error
}

// NopWriter discards events.
type NopWriter struct{}

func (NopWriter) Append(Event) error { return nil }

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(ev Event) error {
	for _, w := range m.writers {
		if err := w.Append(ev); err != nil {
			return err
		}
	}
	return nil
}

type FileWriter struct {
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

func (w *FileWriter) Append(ev Event) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(&ev); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// KafkaWriter publishes events to a Kafka topic keyed by tenant and employee,
// so one employee's trail stays ordered within a partition.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a Kafka writer.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	addrs := strings.Split(bootstrap, ",")
	var brokers []string
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

func (k *KafkaWriter) Append(ev Event) error {
	b, err := json.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(
		context.Background(),
		kafka.Message{Key: []byte(ev.TenantID + "/" + ev.EmployeeID), Value: b},
	)
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}
