package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Terminal status codes follow the ZKTeco convention:
// 0=Check-In 1=Check-Out 2=Break-Out 3=Break-In 4=OT-In 5=OT-Out.
var statusToType = map[int]PunchType{
	0: PunchIn,
	1: PunchOut,
	2: PunchOut,
	3: PunchIn,
	4: PunchIn,
	5: PunchOut,
}

// MapStatus maps a raw terminal status code to a punch direction.
// Unrecognized codes yield IN with ambiguous=true: the device gave no
// usable direction signal and the detection engine decides from context.
func MapStatus(raw string) (t PunchType, ambiguous bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return PunchIn, true
	}
	t, ok := statusToType[n]
	if !ok {
		return PunchIn, true
	}
	return t, false
}

var verifyToMethod = map[int]VerifyMethod{
	0:  VerifyPassword,
	1:  VerifyFingerprint,
	3:  VerifyFingerprint,
	4:  VerifyFace,
	15: VerifyCard,
}

// MapVerify maps a raw terminal verify code to a verification method.
func MapVerify(raw string) VerifyMethod {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return VerifyOther
	}
	m, ok := verifyToMethod[n]
	if !ok {
		return VerifyOther
	}
	return m
}

// DedupKey derives the retransmission-suppression key from terminal id,
// terminal-local pin and the second-rounded timestamp.
func DedupKey(terminalID, pin string, ts time.Time) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", terminalID, pin, ts.Truncate(time.Second).Unix())))
	return hex.EncodeToString(h[:])
}

// Timestamp layouts terminals are known to emit.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParsePunchTime parses a terminal timestamp string into UTC second precision.
func ParsePunchTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable punch time %q", raw)
}
