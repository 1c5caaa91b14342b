package store

import (
	"errors"
	"testing"
	"time"

	"punchd/internal/model"
)

func openPebble(t *testing.T, dir string) *PebbleStore {
	t.Helper()
	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return s
}

func TestPebbleStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := openPebble(t, dir)
	defer s.Close()

	ts := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	r := rec("r1", "t1", "emp1", ts, model.PunchIn)
	if err := s.Insert(r); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(rec("r2", "t1", "emp1", ts, model.PunchIn)); !errors.Is(err, model.ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}

	got, ok, err := s.Get("t1", "r1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ID != "r1" || !got.Timestamp.Equal(ts) {
		t.Fatalf("mismatch: %+v", got)
	}

	byKey, found, err := s.FindByDedupKey("t1", r.DedupKey)
	if err != nil || !found || byKey.ID != "r1" {
		t.Fatalf("find by dedup: %+v found=%v err=%v", byKey, found, err)
	}
}

func TestPebbleStore_LastPunchUsesDayIndex(t *testing.T) {
	dir := t.TempDir()
	s := openPebble(t, dir)
	defer s.Close()

	yesterday := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	morning := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	noon := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for _, r := range []model.AttendanceRecord{
		rec("r0", "t1", "emp1", yesterday, model.PunchOut),
		rec("r1", "t1", "emp1", morning, model.PunchIn),
		rec("r2", "t1", "emp1", noon, model.PunchOut),
	} {
		if err := s.Insert(r); err != nil {
			t.Fatalf("insert %s: %v", r.ID, err)
		}
	}

	got, found, err := s.LastPunch("t1", "emp1", noon.Add(time.Hour))
	if err != nil || !found {
		t.Fatalf("last punch: found=%v err=%v", found, err)
	}
	if got.ID != "r2" {
		t.Fatalf("got %s, want r2", got.ID)
	}
	// the probe instant itself is excluded
	got, found, err = s.LastPunch("t1", "emp1", noon)
	if err != nil || !found || got.ID != "r1" {
		t.Fatalf("strictly-before violated: %+v found=%v err=%v", got, found, err)
	}
	if _, found, _ := s.LastPunch("t1", "emp1", morning); found {
		t.Fatalf("yesterday's punch must not count")
	}
}

func TestPebbleStore_TransitionPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s := openPebble(t, dir)

	ts := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	r := rec("r1", "t1", "emp1", ts, model.PunchIn)
	r.Status = model.StatusPending
	if err := s.Insert(r); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Transition("t1", "r1", func(rec *model.AttendanceRecord) error {
		rec.Status = model.StatusCorrected
		rec.Type = model.PunchOut
		return nil
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2 := openPebble(t, dir)
	defer s2.Close()
	got, ok, err := s2.Get("t1", "r1")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if got.Status != model.StatusCorrected || got.Type != model.PunchOut {
		t.Fatalf("mutation lost across reopen: %+v", got)
	}
}

func TestPebbleStore_LoadAllReplaces(t *testing.T) {
	dir := t.TempDir()
	s := openPebble(t, dir)
	defer s.Close()

	ts := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if err := s.Insert(rec("old", "t1", "emp1", ts, model.PunchIn)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.LoadAll([]model.AttendanceRecord{rec("new", "t1", "emp2", ts.Add(time.Hour), model.PunchOut)}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok, _ := s.Get("t1", "old"); ok {
		t.Fatalf("old record must be gone")
	}
	var count int
	if err := s.Range(func(model.AttendanceRecord) error { count++; return nil }); err != nil {
		t.Fatalf("range: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}
