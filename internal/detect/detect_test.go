package detect

import (
	"strings"
	"testing"
	"time"

	"punchd/internal/model"
)

func dayShift() *model.ShiftContext {
	// 08:00-16:00
	return &model.ShiftContext{StartMinutes: 8 * 60, EndMinutes: 16 * 60}
}

func punchAt(hour, min int, typ model.PunchType) model.NormalizedPunch {
	return model.NormalizedPunch{
		TenantID:   "t1",
		EmployeeID: "emp1",
		Timestamp:  time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC),
		DeviceType: typ,
	}
}

func TestDetect_InNearShiftStart_NoMismatch(t *testing.T) {
	res := Detect(punchAt(7, 55, model.PunchIn), dayShift(), nil, model.DefaultConfig())
	if res.IsWrongType {
		t.Fatalf("expected no mismatch, got %+v", res)
	}
}

func TestDetect_OutNearShiftStart_Mismatch(t *testing.T) {
	res := Detect(punchAt(8, 5, model.PunchOut), dayShift(), nil, model.DefaultConfig())
	if !res.IsWrongType {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if res.ExpectedType == nil || *res.ExpectedType != model.PunchIn {
		t.Fatalf("expected IN, got %+v", res.ExpectedType)
	}
	// shift and first-punch-OUT evidence agree; combined confidence is high
	if res.Confidence < 0.9 {
		t.Fatalf("confidence too low: %f", res.Confidence)
	}
	if res.Method != model.MethodCombined {
		t.Fatalf("method = %s, want %s", res.Method, model.MethodCombined)
	}
}

func TestDetect_DoubleInShortGap_ExpectsOut(t *testing.T) {
	last := &model.AttendanceRecord{
		TenantID:   "t1",
		EmployeeID: "emp1",
		Timestamp:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Type:       model.PunchIn,
		Status:     model.StatusNone,
	}
	res := Detect(punchAt(9, 3, model.PunchIn), dayShift(), last, model.DefaultConfig())
	if !res.IsWrongType {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if res.ExpectedType == nil || *res.ExpectedType != model.PunchOut {
		t.Fatalf("expected OUT, got %+v", res.ExpectedType)
	}
	// gap below the minimum plausible punch gap is near-certain
	if res.Confidence < 0.9 {
		t.Fatalf("confidence = %f, want >= 0.9", res.Confidence)
	}
	if res.Method != model.MethodContext {
		t.Fatalf("method = %s, want %s", res.Method, model.MethodContext)
	}
}

func TestDetect_DoubleInLongGap_LowerConfidence(t *testing.T) {
	last := &model.AttendanceRecord{
		TenantID:   "t1",
		EmployeeID: "emp1",
		Timestamp:  time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC),
		Type:       model.PunchOut,
		Status:     model.StatusNone,
	}
	// 13h gap, repeat OUT far from both shift boundaries
	res := Detect(punchAt(13, 30, model.PunchOut), nil, last, model.DefaultConfig())
	if !res.IsWrongType {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if res.Confidence != 0.65 {
		t.Fatalf("confidence = %f, want 0.65", res.Confidence)
	}
}

func TestDetect_FirstPunchOut_Flagged(t *testing.T) {
	// mid-day, so the shift window itself abstains; the sequence heuristic
	// still knows a scheduled day cannot open with OUT
	res := Detect(punchAt(12, 0, model.PunchOut), dayShift(), nil, model.DefaultConfig())
	if !res.IsWrongType {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if res.ExpectedType == nil || *res.ExpectedType != model.PunchIn {
		t.Fatalf("expected IN, got %+v", res.ExpectedType)
	}
	if res.Confidence != 0.70 {
		t.Fatalf("confidence = %f, want 0.70", res.Confidence)
	}
}

func TestDetect_NoEvidence(t *testing.T) {
	// without a shift and without a prior punch the verdict is always
	// abstention, whichever direction the device reported
	for _, typ := range []model.PunchType{model.PunchIn, model.PunchOut} {
		res := Detect(punchAt(12, 0, typ), nil, nil, model.DefaultConfig())
		if res.IsWrongType {
			t.Fatalf("%s: expected no mismatch, got %+v", typ, res)
		}
		if res.Confidence != 0 || res.ExpectedType != nil {
			t.Fatalf("%s: abstention must carry no verdict: %+v", typ, res)
		}
		if res.Method != model.MethodNone || res.Reason != "no evidence" {
			t.Fatalf("%s: unexpected verdict: %+v", typ, res)
		}
	}
}

func TestDetect_NightShift_OutBeforeDawn_Consistent(t *testing.T) {
	// 21:00-05:00, clocked in at the start of the shift the evening before
	shift := &model.ShiftContext{StartMinutes: 21 * 60, EndMinutes: 5 * 60}
	last := &model.AttendanceRecord{
		TenantID:   "t1",
		EmployeeID: "emp1",
		Timestamp:  time.Date(2026, 3, 1, 21, 5, 0, 0, time.UTC),
		Type:       model.PunchIn,
		Status:     model.StatusNone,
	}
	res := Detect(punchAt(4, 50, model.PunchOut), shift, last, model.DefaultConfig())
	if res.IsWrongType {
		t.Fatalf("expected no mismatch, got %+v", res)
	}
}

func TestDetect_NightShift_OutAtShiftStart_Mismatch(t *testing.T) {
	shift := &model.ShiftContext{StartMinutes: 21 * 60, EndMinutes: 5 * 60}
	last := &model.AttendanceRecord{
		TenantID:   "t1",
		EmployeeID: "emp1",
		Timestamp:  time.Date(2026, 3, 2, 5, 2, 0, 0, time.UTC),
		Type:       model.PunchOut,
		Status:     model.StatusNone,
	}
	res := Detect(punchAt(21, 10, model.PunchOut), shift, last, model.DefaultConfig())
	if !res.IsWrongType {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if res.ExpectedType == nil || *res.ExpectedType != model.PunchIn {
		t.Fatalf("expected IN, got %+v", res.ExpectedType)
	}
}

func TestDetect_AmbiguousStatus_AlwaysParked(t *testing.T) {
	punch := punchAt(12, 0, model.PunchIn)
	punch.Ambiguous = true
	punch.RawStatus = "99"
	res := Detect(punch, nil, nil, model.DefaultConfig())
	if !res.IsWrongType {
		t.Fatalf("ambiguous punch must be flagged, got %+v", res)
	}
	if res.Confidence < 0.75 {
		t.Fatalf("confidence = %f, want >= 0.75", res.Confidence)
	}
	if !strings.Contains(res.Reason, "unrecognized status code") {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestDetect_Disabled(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.DetectionEnabled = false
	res := Detect(punchAt(8, 5, model.PunchOut), dayShift(), nil, cfg)
	if res.IsWrongType || res.Method != model.MethodNone {
		t.Fatalf("expected no verdict when disabled, got %+v", res)
	}
}

func TestDetect_BothDetectorsAgree_Combined(t *testing.T) {
	// IN near the shift end after an IN an hour earlier: schedule and
	// sequence both point at OUT, the combined verdict stacks them
	last := &model.AttendanceRecord{
		TenantID:   "t1",
		EmployeeID: "emp1",
		Timestamp:  time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		Type:       model.PunchIn,
		Status:     model.StatusNone,
	}
	res := Detect(punchAt(15, 55, model.PunchIn), dayShift(), last, model.DefaultConfig())
	if !res.IsWrongType {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if res.Method != model.MethodCombined {
		t.Fatalf("method = %s, want %s", res.Method, model.MethodCombined)
	}
	if res.ExpectedType == nil || *res.ExpectedType != model.PunchOut {
		t.Fatalf("expected OUT, got %+v", res.ExpectedType)
	}
	if res.Confidence < 0.95 {
		t.Fatalf("stacked confidence too low: %f", res.Confidence)
	}
}

func TestDetectByShift_DeepInsideWindow_HigherConfidence(t *testing.T) {
	cfg := model.DefaultConfig()
	near := detectByShift(punchAt(8, 0, model.PunchOut), dayShift(), cfg.ShiftMarginMinutes)
	far := detectByShift(punchAt(9, 30, model.PunchOut), dayShift(), cfg.ShiftMarginMinutes)
	if !near.IsWrongType || !far.IsWrongType {
		t.Fatalf("both should flag: %+v %+v", near, far)
	}
	if near.Confidence <= far.Confidence {
		t.Fatalf("boundary punch should score higher: near=%f far=%f", near.Confidence, far.Confidence)
	}
}
