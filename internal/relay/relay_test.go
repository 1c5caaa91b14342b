package relay

import (
	"encoding/json"
	"testing"
	"time"

	"punchd/internal/audit"
	"punchd/internal/directory"
	"punchd/internal/ingest"
	"punchd/internal/metrics"
	"punchd/internal/model"
	"punchd/internal/store"
)

func testConsumer(t *testing.T) (*Consumer, *store.MemoryStore) {
	t.Helper()
	orig := model.NowUTC
	model.NowUTC = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { model.NowUTC = orig })

	dir := directory.NewStaticDirectory()
	dir.AddTerminal(directory.Terminal{Serial: "SN1", TenantID: "t1", ID: "term1"})
	dir.AddEmployee(directory.Employee{TenantID: "t1", Pin: "100", ID: "emp1"})

	st := store.NewMemoryStore()
	pipeline := ingest.New(st, dir, audit.NopWriter{}, metrics.NewRegistry(), 0)
	return &Consumer{pipeline: pipeline, dir: dir}, st
}

func payload(t *testing.T, serial, table, pin, ts, status string) []byte {
	t.Helper()
	var m Message
	m.TerminalSerial = serial
	m.Table = table
	m.Data.Pin = pin
	m.Data.Time = ts
	m.Data.Status = status
	m.Data.Verify = "1"
	b, err := json.Marshal(&m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandle_IngestsAttendanceMessage(t *testing.T) {
	c, st := testConsumer(t)
	if err := c.handle(payload(t, "SN1", "ATTLOG", "100", "2026-03-02 08:02:00", "0")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	var count int
	_ = st.Range(func(model.AttendanceRecord) error { count++; return nil })
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestHandle_NonAttendanceTableSkipped(t *testing.T) {
	c, st := testConsumer(t)
	if err := c.handle(payload(t, "SN1", "OPERLOG", "100", "2026-03-02 08:02:00", "0")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	var count int
	_ = st.Range(func(model.AttendanceRecord) error { count++; return nil })
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestHandle_ErrorDisposition(t *testing.T) {
	c, _ := testConsumer(t)

	cases := []struct {
		name     string
		payload  []byte
		terminal bool
	}{
		{"garbage json", []byte("{"), true},
		{"unknown device", payload(t, "NOPE", "ATTLOG", "100", "2026-03-02 08:02:00", "0"), true},
		{"unknown pin", payload(t, "SN1", "ATTLOG", "999", "2026-03-02 08:02:00", "0"), true},
		{"future punch", payload(t, "SN1", "ATTLOG", "100", "2026-03-02 14:00:00", "0"), true},
	}
	for _, tc := range cases {
		err := c.handle(tc.payload)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if terminalForEvent(err) != tc.terminal {
			t.Fatalf("%s: terminalForEvent = %v, want %v (%v)", tc.name, terminalForEvent(err), tc.terminal, err)
		}
	}
}

func TestHandle_DuplicateIsNotAnError(t *testing.T) {
	c, _ := testConsumer(t)
	b := payload(t, "SN1", "ATTLOG", "100", "2026-03-02 08:02:00", "0")
	if err := c.handle(b); err != nil {
		t.Fatalf("first: %v", err)
	}
	// redelivery after an uncommitted offset must be absorbed silently
	if err := c.handle(b); err != nil {
		t.Fatalf("second: %v", err)
	}
}
