// Package ingest turns raw terminal payloads into attendance records:
// dedup, normalization, type resolution and record creation, serialized
// per employee so the day's punch sequence is always observed consistently.
package ingest

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"punchd/internal/audit"
	"punchd/internal/detect"
	"punchd/internal/directory"
	"punchd/internal/metrics"
	"punchd/internal/model"
	"punchd/internal/store"
)

// Result statuses reported back to the protocol boundary.
const (
	ResultCreated   = "CREATED"
	ResultDuplicate = "DUPLICATE"
	ResultDebounced = "DEBOUNCE_BLOCKED"
)

type Result struct {
	Status    string                 `json:"status"`
	Record    model.AttendanceRecord `json:"record,omitempty"`
	Detection model.DetectionResult  `json:"detection,omitempty"`
}

type Pipeline struct {
	store store.Store
	dir   directory.Directory
	trail audit.Writer
	met   *metrics.Registry
	dedup *gocache.Cache
	locks *keyedLocks
}

// New builds a pipeline. dedupWindow bounds the in-process idempotency cache;
// the store's dedup index remains the authoritative insert-if-absent check.
func New(st store.Store, dir directory.Directory, trail audit.Writer, met *metrics.Registry, dedupWindow time.Duration) *Pipeline {
	if dedupWindow <= 0 {
		dedupWindow = 24 * time.Hour
	}
	return &Pipeline{
		store: st,
		dir:   dir,
		trail: trail,
		met:   met,
		dedup: gocache.New(dedupWindow, 10*time.Minute),
		locks: newKeyedLocks(),
	}
}

// Ingest processes one raw event end to end. All failures are terminal for
// the event: retransmission is the terminal's business and is absorbed by
// dedup, never requested by us.
func (p *Pipeline) Ingest(ev model.RawPunchEvent) (Result, error) {
	started := time.Now()
	defer func() { p.met.IngestLatency.Observe(time.Since(started).Seconds()) }()

	if err := ValidateRaw(ev); err != nil {
		p.met.RejectedPayload.Inc()
		return Result{}, err
	}
	cfg := p.dir.EffectiveConfig(ev.TenantID)

	ts, err := model.ParsePunchTime(ev.Time)
	if err != nil {
		p.met.RejectedPayload.Inc()
		return Result{}, &FieldError{Field: "data.time", Reason: err.Error()}
	}
	skew := time.Duration(cfg.ClockSkewMinutes) * time.Minute
	if ts.After(model.NowUTC().Add(skew)) {
		p.met.RejectedSkew.Inc()
		return Result{}, fmt.Errorf("punch at %s: %w", ts.Format(time.RFC3339), model.ErrClockSkewRejected)
	}

	devType, ambiguous := model.MapStatus(ev.Status)
	method := model.MapVerify(ev.Verify)
	if ambiguous {
		method = model.VerifyOther
	}
	dedupKey := model.DedupKey(ev.TerminalID, ev.Pin, ts)
	cacheKey := ev.TenantID + "/" + dedupKey

	if _, hit := p.dedup.Get(cacheKey); hit {
		return p.duplicate(ev.TenantID, dedupKey)
	}
	if existing, found, err := p.store.FindByDedupKey(ev.TenantID, dedupKey); err != nil {
		return Result{}, fmt.Errorf("dedup lookup: %w", err)
	} else if found {
		p.dedup.SetDefault(cacheKey, struct{}{})
		p.met.Duplicates.Inc()
		return Result{Status: ResultDuplicate, Record: existing}, nil
	}

	employeeID, err := p.dir.ResolveEmployee(ev.TenantID, ev.TerminalID, ev.Pin)
	if err != nil {
		p.met.RejectedPin.Inc()
		log.Printf("ingest: tenant=%s terminal=%s pin=%s: %v", ev.TenantID, ev.TerminalID, ev.Pin, err)
		return Result{}, err
	}

	// Serialize per (tenant, employee): context detection and record creation
	// must observe a monotonically-updated view of the day's punches.
	l := p.locks.lock(ev.TenantID + "/" + employeeID)
	defer l.Unlock()

	var last *model.AttendanceRecord
	if rec, found, err := p.store.LastPunch(ev.TenantID, employeeID, ts); err != nil {
		return Result{}, fmt.Errorf("last punch lookup: %w", err)
	} else if found {
		last = &rec
	}

	if last != nil && cfg.DebounceSeconds > 0 && ts.Sub(last.Timestamp) < time.Duration(cfg.DebounceSeconds)*time.Second {
		p.dedup.SetDefault(cacheKey, struct{}{})
		p.met.Debounced.Inc()
		p.appendTrail(audit.Event{
			Kind: audit.KindDebounced, TenantID: ev.TenantID, EmployeeID: employeeID,
			Type: devType, Reason: fmt.Sprintf("within %ds of previous punch", cfg.DebounceSeconds),
			TS: model.NowUTC().Unix(),
		})
		return Result{Status: ResultDebounced}, nil
	}

	shift, err := p.dir.ShiftFor(ev.TenantID, employeeID, ts)
	if err != nil {
		return Result{}, fmt.Errorf("shift lookup: %w", err)
	}

	punch := model.NormalizedPunch{
		TenantID:     ev.TenantID,
		EmployeeID:   employeeID,
		TerminalID:   ev.TerminalID,
		Timestamp:    ts,
		DeviceType:   devType,
		Method:       method,
		DedupKey:     dedupKey,
		Ambiguous:    ambiguous,
		RawStatus:    ev.Status,
		OriginalData: ev.Vendor,
	}
	det := detect.Detect(punch, shift, last, cfg)

	status := model.StatusNone
	if det.IsWrongType && det.Confidence >= cfg.AmbiguityThreshold {
		status = model.StatusPending
	}

	rec := model.AttendanceRecord{
		ID:         uuid.NewString(),
		TenantID:   punch.TenantID,
		EmployeeID: punch.EmployeeID,
		TerminalID: punch.TerminalID,
		Timestamp:  punch.Timestamp,
		Type:       punch.DeviceType, // device value stands, provisional while pending
		Method:     punch.Method,
		Status:     status,
		DedupKey:   punch.DedupKey,
		RawData:    punch.OriginalData,
		CreatedAt:  model.NowUTC(),
	}
	if status == model.StatusPending {
		rec.ExpectedType = det.ExpectedType
		rec.DetectReason = det.Reason
		rec.DetectMethod = det.Method
		rec.Confidence = det.Confidence
	}

	if err := p.store.Insert(rec); err != nil {
		if errors.Is(err, model.ErrDuplicateKey) {
			return p.duplicate(ev.TenantID, dedupKey)
		}
		return Result{}, fmt.Errorf("insert record: %w", err)
	}
	p.dedup.SetDefault(cacheKey, struct{}{})

	p.met.Accepted.Inc()
	p.appendTrail(audit.Event{
		Kind: audit.KindCreated, TenantID: rec.TenantID, RecordID: rec.ID, EmployeeID: rec.EmployeeID,
		Type: rec.Type, Status: string(rec.Status), TS: model.NowUTC().Unix(), Record: &rec,
	})
	if status == model.StatusPending {
		p.met.Flagged.Inc()
		reason := det.Reason
		if cfg.AutoCorrect {
			// advisory only; reviewers still decide, the hint just surfaces
			// the tenant's preference on the trail
			reason += " [auto-correct advised]"
		}
		p.appendTrail(audit.Event{
			Kind: audit.KindFlagged, TenantID: rec.TenantID, RecordID: rec.ID, EmployeeID: rec.EmployeeID,
			Type: rec.Type, Confidence: det.Confidence, Reason: reason, TS: model.NowUTC().Unix(),
		})
	} else {
		p.met.AutoAccepted.Inc()
	}

	return Result{Status: ResultCreated, Record: rec, Detection: det}, nil
}

func (p *Pipeline) duplicate(tenantID, dedupKey string) (Result, error) {
	p.met.Duplicates.Inc()
	existing, found, err := p.store.FindByDedupKey(tenantID, dedupKey)
	if err != nil {
		return Result{}, fmt.Errorf("dedup lookup: %w", err)
	}
	res := Result{Status: ResultDuplicate}
	// a cache hit without a stored record means the original was debounced,
	// not recorded; there is nothing to reference on the trail
	if found {
		res.Record = existing
		p.appendTrail(audit.Event{
			Kind: audit.KindDuplicate, TenantID: tenantID, RecordID: existing.ID,
			EmployeeID: existing.EmployeeID, TS: model.NowUTC().Unix(),
		})
	}
	return res, nil
}

func (p *Pipeline) appendTrail(ev audit.Event) {
	if err := p.trail.Append(ev); err != nil {
		log.Printf("audit append: %v", err)
	}
}
