package model

// EffectiveConfig is per-tenant runtime tuning, served by the directory.
type EffectiveConfig struct {
	ShiftMarginMinutes int     `json:"shiftMarginMinutes"` // arrival/departure window half-width
	AmbiguityThreshold float64 `json:"ambiguityThreshold"` // confidence bar for parking a record
	MinPunchGapMinutes int     `json:"minPunchGapMinutes"` // below this, a same-type repeat is near-certain inversion
	DebounceSeconds    int     `json:"debounceSeconds"`    // below this, the punch is a contact bounce, not recorded
	ClockSkewMinutes   int     `json:"clockSkewMinutes"`   // future-dated tolerance
	DedupWindowHours   int     `json:"dedupWindowHours"`   // idempotency window
	ContextWeight      float64 `json:"contextWeight"`      // aggregation weight, sequence evidence
	ShiftWeight        float64 `json:"shiftWeight"`        // aggregation weight, schedule evidence
	AutoCorrect        bool    `json:"autoCorrect"`        // advisory only; annotates audit events
	DetectionEnabled   bool    `json:"detectionEnabled"`
}

// DefaultConfig returns tenant defaults. Weights are tunable configuration,
// not constants baked into the engine.
func DefaultConfig() EffectiveConfig {
	return EffectiveConfig{
		ShiftMarginMinutes: 120,
		AmbiguityThreshold: 0.7,
		MinPunchGapMinutes: 10,
		DebounceSeconds:    30,
		ClockSkewMinutes:   5,
		DedupWindowHours:   24,
		ContextWeight:      1.0,
		ShiftWeight:        0.85,
		DetectionEnabled:   true,
	}
}
