// Package relay ingests store-and-forward punch batches from Kafka.
// Terminals behind flaky links (or an upstream collector) push the same
// payload shape as the HTTP gateway onto a topic; the relay drains it into
// the ingestion pipeline with manual offset commits, so a crash mid-batch
// reprocesses messages and dedup absorbs the repeats.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"punchd/internal/directory"
	"punchd/internal/ingest"
	"punchd/internal/model"
)

// Message is the store-and-forward payload: identical to the HTTP push shape.
type Message struct {
	TerminalSerial string `json:"sn"`
	Table          string `json:"table"`
	Stamp          string `json:"stamp,omitempty"`
	Data           struct {
		Pin    string `json:"pin"`
		Time   string `json:"time"`
		Status string `json:"status"`
		Verify string `json:"verify"`
	} `json:"data"`
}

const tableAttendance = "ATTLOG"

type Consumer struct {
	consumer *ck.Consumer
	pipeline *ingest.Pipeline
	dir      directory.Directory
}

func NewConsumer(bootstrap, groupID, topic string, pipeline *ingest.Pipeline, dir directory.Directory) (*Consumer, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           groupID,
		"enable.auto.commit": false,
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &Consumer{consumer: c, pipeline: pipeline, dir: dir}, nil
}

func (c *Consumer) Close() error { return c.consumer.Close() }

// Run drains the topic until ctx is done. Semantic rejections (unknown
// device, unknown pin, malformed, skew) are terminal for the event and
// committed; only store failures leave the offset uncommitted for retry.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			var kerr ck.Error
			if errors.As(err, &kerr) && kerr.Code() == ck.ErrTimedOut {
				continue
			}
			log.Printf("relay: read: %v", err)
			continue
		}

		if err := c.handle(msg.Value); err != nil {
			if !terminalForEvent(err) {
				log.Printf("relay: transient failure, leaving offset uncommitted: %v", err)
				continue
			}
			log.Printf("relay: dropping event: %v", err)
		}
		if _, err := c.consumer.CommitMessage(msg); err != nil {
			log.Printf("relay: commit: %v", err)
		}
	}
}

func (c *Consumer) handle(payload []byte) error {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("unmarshal: %w: %w", model.ErrMalformedPayload, err)
	}
	if m.Table != tableAttendance && m.Table != "attendance" {
		return nil
	}
	tenantID, terminalID, err := c.dir.ResolveTerminal(m.TerminalSerial)
	if err != nil {
		return err
	}
	_, err = c.pipeline.Ingest(model.RawPunchEvent{
		TenantID:       tenantID,
		TerminalSerial: m.TerminalSerial,
		TerminalID:     terminalID,
		Pin:            m.Data.Pin,
		Time:           m.Data.Time,
		Status:         m.Data.Status,
		Verify:         m.Data.Verify,
		Vendor: map[string]any{
			"sn": m.TerminalSerial, "table": m.Table, "stamp": m.Stamp,
			"pin": m.Data.Pin, "time": m.Data.Time,
			"status": m.Data.Status, "verify": m.Data.Verify,
		},
	})
	return err
}

func terminalForEvent(err error) bool {
	return errors.Is(err, model.ErrMalformedPayload) ||
		errors.Is(err, model.ErrDeviceNotRegistered) ||
		errors.Is(err, model.ErrEmployeeNotFound) ||
		errors.Is(err, model.ErrClockSkewRejected)
}
