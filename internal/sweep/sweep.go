// Package sweep periodically counts records stuck in PENDING_VALIDATION
// longer than the escalation cutoff and exposes the count to monitoring.
package sweep

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"punchd/internal/metrics"
	"punchd/internal/model"
	"punchd/internal/store"
)

type Sweeper struct {
	st     store.Store
	met    *metrics.Registry
	maxAge time.Duration
}

func NewSweeper(st store.Store, met *metrics.Registry, maxAge time.Duration) *Sweeper {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Sweeper{st: st, met: met, maxAge: maxAge}
}

// Sweep scans for stale pending records and updates the gauge.
func (s *Sweeper) Sweep() {
	cutoff := model.NowUTC().Add(-s.maxAge)
	stale := 0
	err := s.st.Range(func(rec model.AttendanceRecord) error {
		if rec.Status == model.StatusPending && rec.CreatedAt.Before(cutoff) {
			stale++
		}
		return nil
	})
	if err != nil {
		log.Printf("sweep: %v", err)
		return
	}
	s.met.PendingStale.Set(float64(stale))
	if stale > 0 {
		log.Printf("sweep: %d records pending validation for more than %s", stale, s.maxAge)
	}
}

// Start schedules the sweep on a cron spec and returns the running scheduler.
func (s *Sweeper) Start(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("cron schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
