// Package detect decides whether a punch's device-reported direction is
// believable. The verdict is advisory: the engine never rewrites the
// device-reported value, it only reports a confidence-weighted expectation
// and leaves the decision to the validation workflow.
package detect

import (
	"fmt"
	"time"

	"punchd/internal/model"
)

// ambiguousFloor is the minimum confidence assigned to punches whose raw
// status code carried no usable direction signal at all.
const ambiguousFloor = 0.75

// Detect combines shift-window and punch-sequence evidence into one verdict.
// Sequence violations weigh heavier than schedule drift: two consecutive
// same-direction punches are closer to unambiguous than a punch that sits
// near the wrong end of a shift window.
func Detect(punch model.NormalizedPunch, shift *model.ShiftContext, last *model.AttendanceRecord, cfg model.EffectiveConfig) model.DetectionResult {
	actual := punch.DeviceType
	if !cfg.DetectionEnabled {
		return model.DetectionResult{ActualType: actual, Reason: "detection disabled", Method: model.MethodNone}
	}

	shiftRes := detectByShift(punch, shift, cfg.ShiftMarginMinutes)
	ctxRes := detectByContext(punch, last, cfg.MinPunchGapMinutes)
	res := combine(shiftRes, ctxRes, shift == nil, last == nil, cfg)

	if punch.Ambiguous {
		// No usable direction signal from the device: always park for review,
		// keeping whatever expectation the detectors produced.
		res.IsWrongType = true
		if res.Confidence < ambiguousFloor {
			res.Confidence = ambiguousFloor
		}
		res.Reason = fmt.Sprintf("unrecognized status code %q gave no direction signal; %s", punch.RawStatus, res.Reason)
	}
	return res
}

// detectByShift compares the punch against the employee's scheduled window.
// A punch near the scheduled start should be IN, near the scheduled end OUT.
// Punches far from both boundaries yield no opinion rather than a forced guess.
func detectByShift(punch model.NormalizedPunch, shift *model.ShiftContext, marginMinutes int) model.DetectionResult {
	actual := punch.DeviceType
	if shift == nil {
		return model.DetectionResult{ActualType: actual, Reason: "no shift for employee", Method: model.MethodShift}
	}
	if marginMinutes <= 0 {
		marginMinutes = model.DefaultConfig().ShiftMarginMinutes
	}

	punchMin := punch.Timestamp.Hour()*60 + punch.Timestamp.Minute()
	startMin := shift.StartMinutes
	endMin := shift.EndMinutes

	var distStart, distEnd int
	if shift.NightShift() {
		// e.g. 21:00-05:00: normalize past-midnight minutes onto one axis.
		norm := punchMin
		if norm < startMin {
			norm += 24 * 60
		}
		distStart = abs(norm - startMin)
		distEnd = abs(norm - (endMin + 24*60))
	} else {
		distStart = abs(punchMin - startMin)
		distEnd = abs(punchMin - endMin)
	}

	var expected *model.PunchType
	var confidence float64
	switch {
	case distStart <= marginMinutes && distEnd > marginMinutes:
		expected = ptr(model.PunchIn)
		// the deeper inside the arrival window, the stronger the expectation
		confidence = 1 - (float64(distStart)/float64(marginMinutes))*0.4
	case distEnd <= marginMinutes && distStart > marginMinutes:
		expected = ptr(model.PunchOut)
		confidence = 1 - (float64(distEnd)/float64(marginMinutes))*0.4
	case distStart <= marginMinutes && distEnd <= marginMinutes:
		// inside both windows: nearest boundary wins, low confidence
		if distStart < distEnd {
			expected = ptr(model.PunchIn)
		} else {
			expected = ptr(model.PunchOut)
		}
		confidence = 0.5
	}

	if expected != nil && *expected != actual {
		dist := distStart
		if *expected == model.PunchOut {
			dist = distEnd
		}
		return model.DetectionResult{
			IsWrongType:  true,
			Confidence:   clamp01(confidence),
			ExpectedType: expected,
			ActualType:   actual,
			Reason:       fmt.Sprintf("%s reported %d min from scheduled %s boundary (expected %s)", actual, dist, boundaryName(*expected), *expected),
			Method:       model.MethodShift,
		}
	}
	return model.DetectionResult{ActualType: actual, Reason: "type consistent with shift", Method: model.MethodShift}
}

// detectByContext checks alternation: a day's punches should go IN, OUT, IN...
// Repeating the previous punch's direction is a strong inversion signal,
// near-certain when the gap is below the minimum plausible punch gap.
func detectByContext(punch model.NormalizedPunch, last *model.AttendanceRecord, minGapMinutes int) model.DetectionResult {
	actual := punch.DeviceType
	if last == nil {
		if actual == model.PunchOut {
			return model.DetectionResult{
				IsWrongType:  true,
				Confidence:   0.70,
				ExpectedType: ptr(model.PunchIn),
				ActualType:   actual,
				Reason:       "first punch of the day reported OUT (expected IN)",
				Method:       model.MethodContext,
			}
		}
		return model.DetectionResult{ActualType: actual, Reason: "first punch of the day, IN is consistent", Method: model.MethodContext}
	}

	gap := punch.Timestamp.Sub(last.Timestamp)
	if last.Type == actual && gap < 14*time.Hour {
		confidence := 0.65
		if gap < 12*time.Hour {
			confidence = 0.85
		}
		if minGapMinutes > 0 && gap < time.Duration(minGapMinutes)*time.Minute {
			confidence = 0.9
		}
		expected := actual.Opposite()
		return model.DetectionResult{
			IsWrongType:  true,
			Confidence:   confidence,
			ExpectedType: &expected,
			ActualType:   actual,
			Reason:       fmt.Sprintf("two consecutive %s punches %.0f min apart (expected %s)", actual, gap.Minutes(), expected),
			Method:       model.MethodContext,
		}
	}
	return model.DetectionResult{ActualType: actual, Reason: "punch sequence is consistent", Method: model.MethodContext}
}

// combine merges the two verdicts. Weights come from tenant config so the
// aggregation geometry stays tunable rather than baked in.
func combine(shiftRes, ctxRes model.DetectionResult, noShift, noLast bool, cfg model.EffectiveConfig) model.DetectionResult {
	if noShift && noLast {
		// unscheduled employee, first punch of the day: the first-punch-OUT
		// heuristic needs a schedule to lean on, so nothing here is evidence
		return model.DetectionResult{ActualType: ctxRes.ActualType, Reason: "no evidence", Method: model.MethodNone}
	}

	wCtx, wShift := cfg.ContextWeight, cfg.ShiftWeight
	if wCtx <= 0 {
		wCtx = 1.0
	}
	if wShift <= 0 {
		wShift = 0.85
	}
	maxW := wCtx
	if wShift > maxW {
		maxW = wShift
	}

	switch {
	case !shiftRes.IsWrongType && !ctxRes.IsWrongType:
		return model.DetectionResult{ActualType: shiftRes.ActualType, Reason: "no type anomaly detected", Method: model.MethodCombined}

	case shiftRes.IsWrongType && !ctxRes.IsWrongType:
		shiftRes.Confidence = clamp01(shiftRes.Confidence * wShift / maxW)
		return shiftRes

	case !shiftRes.IsWrongType && ctxRes.IsWrongType:
		ctxRes.Confidence = clamp01(ctxRes.Confidence * wCtx / maxW)
		return ctxRes

	default:
		if *shiftRes.ExpectedType == *ctxRes.ExpectedType {
			return model.DetectionResult{
				IsWrongType:  true,
				Confidence:   clamp01(wCtx*ctxRes.Confidence + wShift*shiftRes.Confidence),
				ExpectedType: ctxRes.ExpectedType,
				ActualType:   ctxRes.ActualType,
				Reason:       ctxRes.Reason + "; " + shiftRes.Reason,
				Method:       model.MethodCombined,
			}
		}
		// detectors disagree on the expected direction: the higher weighted
		// score wins, the other is noise
		if wCtx*ctxRes.Confidence >= wShift*shiftRes.Confidence {
			ctxRes.Confidence = clamp01(ctxRes.Confidence * wCtx / maxW)
			return ctxRes
		}
		shiftRes.Confidence = clamp01(shiftRes.Confidence * wShift / maxW)
		return shiftRes
	}
}

func boundaryName(t model.PunchType) string {
	if t == model.PunchIn {
		return "start"
	}
	return "end"
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func ptr(t model.PunchType) *model.PunchType { return &t }
