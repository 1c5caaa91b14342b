// Package workflow applies human review actions to flagged records.
// Transitions are monotonic: NONE, VALIDATED, REJECTED and CORRECTED are
// terminal, only PENDING_VALIDATION accepts an action, and each action
// commits through the store's compare-and-transition so two concurrent
// reviewers can never both resolve the same record.
package workflow

import (
	"fmt"
	"log"

	"punchd/internal/audit"
	"punchd/internal/metrics"
	"punchd/internal/model"
	"punchd/internal/store"
)

// Action is a review decision on one pending record.
type Action string

const (
	ActionValidate Action = "VALIDATE"
	ActionReject   Action = "REJECT"
	ActionCorrect  Action = "CORRECT"
)

// Request is one review action. CorrectedType is required for CORRECT,
// Note is optional everywhere.
type Request struct {
	AttendanceID  string           `json:"attendanceId"`
	Action        Action           `json:"action"`
	CorrectedType *model.PunchType `json:"correctedType,omitempty"`
	Note          string           `json:"note,omitempty"`
}

// ItemResult is the per-item outcome of a bulk application.
type ItemResult struct {
	AttendanceID string                 `json:"attendanceId"`
	Applied      bool                   `json:"applied"`
	Error        string                 `json:"error,omitempty"`
	Record       model.AttendanceRecord `json:"record,omitempty"`
}

type Workflow struct {
	store store.Store
	trail audit.Writer
	met   *metrics.Registry
}

func New(st store.Store, trail audit.Writer, met *metrics.Registry) *Workflow {
	return &Workflow{store: st, trail: trail, met: met}
}

// Apply runs one review action. The mutation commits only if the record is
// still PENDING_VALIDATION at commit time.
func (w *Workflow) Apply(tenantID string, req Request) (model.AttendanceRecord, error) {
	if req.Action == ActionCorrect && req.CorrectedType == nil {
		w.met.ActionFailed.Inc()
		return model.AttendanceRecord{}, model.ErrMissingCorrectedType
	}
	switch req.Action {
	case ActionValidate, ActionReject, ActionCorrect:
	default:
		w.met.ActionFailed.Inc()
		return model.AttendanceRecord{}, fmt.Errorf("unknown action %q: %w", req.Action, model.ErrMalformedPayload)
	}

	rec, err := w.store.Transition(tenantID, req.AttendanceID, func(rec *model.AttendanceRecord) error {
		if rec.Status != model.StatusPending {
			return fmt.Errorf("status %s: %w", rec.Status, model.ErrInvalidTransition)
		}
		now := model.NowUTC()
		rec.ResolvedAt = &now
		rec.Note = req.Note
		switch req.Action {
		case ActionValidate:
			// device-reported type was right despite the flag; type unchanged
			rec.Status = model.StatusValidated
		case ActionReject:
			// type retained for audit, record excluded from hour calculations
			rec.Status = model.StatusRejected
		case ActionCorrect:
			rec.Status = model.StatusCorrected
			rec.Type = *req.CorrectedType
		}
		return nil
	})
	if err != nil {
		w.met.ActionFailed.Inc()
		return model.AttendanceRecord{}, err
	}

	switch req.Action {
	case ActionValidate:
		w.met.Validated.Inc()
		w.appendTrail(audit.KindValidated, rec, req.Note)
	case ActionReject:
		w.met.Rejected.Inc()
		w.appendTrail(audit.KindRejected, rec, req.Note)
	case ActionCorrect:
		w.met.Corrected.Inc()
		w.appendTrail(audit.KindCorrected, rec, req.Note)
	}
	return rec, nil
}

// ApplyBulk evaluates each request independently: one failing item is
// reported in place and never blocks or rolls back the others.
func (w *Workflow) ApplyBulk(tenantID string, reqs []Request) []ItemResult {
	results := make([]ItemResult, 0, len(reqs))
	for _, req := range reqs {
		rec, err := w.Apply(tenantID, req)
		item := ItemResult{AttendanceID: req.AttendanceID}
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Applied = true
			item.Record = rec
		}
		results = append(results, item)
	}
	return results
}

func (w *Workflow) appendTrail(kind string, rec model.AttendanceRecord, note string) {
	err := w.trail.Append(audit.Event{
		Kind:       kind,
		TenantID:   rec.TenantID,
		RecordID:   rec.ID,
		EmployeeID: rec.EmployeeID,
		Type:       rec.Type,
		Status:     string(rec.Status),
		Reason:     note,
		TS:         model.NowUTC().Unix(),
	})
	if err != nil {
		log.Printf("audit append: %v", err)
	}
}
