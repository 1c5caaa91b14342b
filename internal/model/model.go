package model

import "time"

// PunchType is the direction of a clock event.
type PunchType string

const (
	PunchIn  PunchType = "IN"
	PunchOut PunchType = "OUT"
)

// Opposite returns the alternate direction.
func (t PunchType) Opposite() PunchType {
	if t == PunchIn {
		return PunchOut
	}
	return PunchIn
}

// VerifyMethod is how the terminal authenticated the employee.
type VerifyMethod string

const (
	VerifyPassword    VerifyMethod = "PASSWORD"
	VerifyFingerprint VerifyMethod = "FINGERPRINT"
	VerifyFace        VerifyMethod = "FACE"
	VerifyCard        VerifyMethod = "CARD"
	VerifyOther       VerifyMethod = "OTHER"
)

// ValidationStatus is the review-lifecycle state of a record.
// Only StatusPending accepts further transitions.
type ValidationStatus string

const (
	StatusNone      ValidationStatus = "NONE"
	StatusPending   ValidationStatus = "PENDING_VALIDATION"
	StatusValidated ValidationStatus = "VALIDATED"
	StatusRejected  ValidationStatus = "REJECTED"
	StatusCorrected ValidationStatus = "CORRECTED"
)

// Terminal reports whether the status accepts no further transitions.
func (s ValidationStatus) Terminal() bool { return s != StatusPending }

// RawPunchEvent is a punch as received from a terminal. Never persisted.
type RawPunchEvent struct {
	TenantID       string
	TerminalSerial string
	TerminalID     string
	Pin            string
	Time           string
	Status         string
	Verify         string
	Vendor         map[string]any
}

// NormalizedPunch is the canonical form of one accepted punch.
type NormalizedPunch struct {
	TenantID     string         `json:"tenantId"`
	EmployeeID   string         `json:"employeeId"`
	TerminalID   string         `json:"terminalId"`
	Timestamp    time.Time      `json:"timestamp"` // UTC, second precision
	DeviceType   PunchType      `json:"deviceType"`
	Method       VerifyMethod   `json:"method"`
	DedupKey     string         `json:"dedupKey"`
	Ambiguous    bool           `json:"ambiguous,omitempty"` // device gave no usable direction signal
	RawStatus    string         `json:"rawStatus,omitempty"`
	OriginalData map[string]any `json:"rawData,omitempty"`
}

// DetectionResult is the Type-Resolution Engine's advisory verdict.
// ExpectedType is nil when no detector had an opinion.
type DetectionResult struct {
	IsWrongType  bool       `json:"isWrongType"`
	Confidence   float64    `json:"confidence"` // 0..1
	ExpectedType *PunchType `json:"expectedType"`
	ActualType   PunchType  `json:"actualType"`
	Reason       string     `json:"reason"`
	Method       string     `json:"detectionMethod"`
}

// Detection method names embedded in the audit trail.
const (
	MethodNone     = "NONE"
	MethodShift    = "SHIFT_BASED"
	MethodContext  = "CONTEXT_BASED"
	MethodCombined = "COMBINED"
)

// AttendanceRecord is the durable unit. Mutated only by workflow transitions,
// never deleted.
type AttendanceRecord struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenantId"`
	EmployeeID   string           `json:"employeeId"`
	TerminalID   string           `json:"terminalId"`
	Timestamp    time.Time        `json:"timestamp"`
	Type         PunchType        `json:"type"`
	Method       VerifyMethod     `json:"method"`
	Status       ValidationStatus `json:"validationStatus"`
	Note         string           `json:"validationNote,omitempty"`
	DedupKey     string           `json:"dedupKey"`
	ExpectedType *PunchType       `json:"expectedType,omitempty"`
	DetectReason string           `json:"detectReason,omitempty"`
	DetectMethod string           `json:"detectMethod,omitempty"`
	Confidence   float64          `json:"confidence,omitempty"`
	RawData      map[string]any   `json:"rawData,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	ResolvedAt   *time.Time       `json:"resolvedAt,omitempty"`
}

// ShiftContext is the scheduled window for an employee's day.
// Absent contexts are modeled as a nil pointer, never a zero value.
type ShiftContext struct {
	StartMinutes int // minutes from midnight
	EndMinutes   int // may be < StartMinutes for night shifts
}

// NightShift reports whether the shift wraps midnight.
func (s ShiftContext) NightShift() bool { return s.EndMinutes < s.StartMinutes }

// NowUTC returns current UTC time. Split for testability.
var NowUTC = func() time.Time { return time.Now().UTC() }
