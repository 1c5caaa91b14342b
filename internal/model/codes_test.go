package model

import (
	"testing"
	"time"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw       string
		want      PunchType
		ambiguous bool
	}{
		{"0", PunchIn, false},
		{"1", PunchOut, false},
		{"2", PunchOut, false},
		{"3", PunchIn, false},
		{"4", PunchIn, false},
		{"5", PunchOut, false},
		{"99", PunchIn, true},
		{"garbage", PunchIn, true},
		{"", PunchIn, true},
	}
	for _, c := range cases {
		got, ambiguous := MapStatus(c.raw)
		if got != c.want || ambiguous != c.ambiguous {
			t.Fatalf("MapStatus(%q) = %s,%v want %s,%v", c.raw, got, ambiguous, c.want, c.ambiguous)
		}
	}
}

func TestMapVerify(t *testing.T) {
	cases := []struct {
		raw  string
		want VerifyMethod
	}{
		{"0", VerifyPassword},
		{"1", VerifyFingerprint},
		{"3", VerifyFingerprint},
		{"4", VerifyFace},
		{"15", VerifyCard},
		{"7", VerifyOther},
		{"x", VerifyOther},
	}
	for _, c := range cases {
		if got := MapVerify(c.raw); got != c.want {
			t.Fatalf("MapVerify(%q) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestDedupKey_SecondRounding(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	k1 := DedupKey("term1", "100", base)
	k2 := DedupKey("term1", "100", base.Add(500*time.Millisecond))
	if k1 != k2 {
		t.Fatalf("sub-second jitter must not change the key: %s vs %s", k1, k2)
	}
	k3 := DedupKey("term1", "100", base.Add(time.Second))
	if k1 == k3 {
		t.Fatalf("distinct seconds must yield distinct keys")
	}
	if k := DedupKey("term2", "100", base); k == k1 {
		t.Fatalf("distinct terminals must yield distinct keys")
	}
	if k := DedupKey("term1", "101", base); k == k1 {
		t.Fatalf("distinct pins must yield distinct keys")
	}
}

func TestParsePunchTime(t *testing.T) {
	want := time.Date(2026, 3, 2, 8, 15, 30, 0, time.UTC)
	for _, raw := range []string{
		"2026-03-02 08:15:30",
		"2026-03-02T08:15:30Z",
		"2026-03-02T08:15:30",
	} {
		got, err := ParsePunchTime(raw)
		if err != nil {
			t.Fatalf("ParsePunchTime(%q): %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParsePunchTime(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParsePunchTime("02/03/2026 08:15"); err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}

func TestPunchTypeOpposite(t *testing.T) {
	if PunchIn.Opposite() != PunchOut || PunchOut.Opposite() != PunchIn {
		t.Fatalf("Opposite is not an involution")
	}
}

func TestValidationStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Fatalf("pending must accept transitions")
	}
	for _, s := range []ValidationStatus{StatusNone, StatusValidated, StatusRejected, StatusCorrected} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}

func TestNightShift(t *testing.T) {
	day := ShiftContext{StartMinutes: 8 * 60, EndMinutes: 16 * 60}
	night := ShiftContext{StartMinutes: 21 * 60, EndMinutes: 5 * 60}
	if day.NightShift() {
		t.Fatalf("08:00-16:00 is not a night shift")
	}
	if !night.NightShift() {
		t.Fatalf("21:00-05:00 is a night shift")
	}
}
