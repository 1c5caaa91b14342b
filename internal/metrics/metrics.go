package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// ingestion
	Accepted        prometheus.Counter
	Duplicates      prometheus.Counter
	Debounced       prometheus.Counter
	RejectedDevice  prometheus.Counter
	RejectedPayload prometheus.Counter
	RejectedPin     prometheus.Counter
	RejectedSkew    prometheus.Counter
	IngestLatency   prometheus.Histogram

	// detection & workflow
	Flagged      prometheus.Counter
	AutoAccepted prometheus.Counter
	Validated    prometheus.Counter
	Rejected     prometheus.Counter
	Corrected    prometheus.Counter
	ActionFailed prometheus.Counter
	PendingStale prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	accepted := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_ingest_accepted_total"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_ingest_duplicate_total"})
	debounced := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_ingest_debounced_total"})
	rejDevice := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_ingest_rejected_device_total"})
	rejPayload := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_ingest_rejected_payload_total"})
	rejPin := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_ingest_rejected_pin_total"})
	rejSkew := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_ingest_rejected_clockskew_total"})
	ingestLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "punchd_ingest_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	flagged := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_detect_flagged_total"})
	autoAccepted := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_detect_auto_accepted_total"})
	validated := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_workflow_validated_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_workflow_rejected_total"})
	corrected := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_workflow_corrected_total"})
	actionFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "punchd_workflow_action_failed_total"})
	pendingStale := prometheus.NewGauge(prometheus.GaugeOpts{Name: "punchd_pending_stale"})

	r.MustRegister(accepted, duplicates, debounced, rejDevice, rejPayload, rejPin, rejSkew, ingestLatency,
		flagged, autoAccepted, validated, rejected, corrected, actionFailed, pendingStale)
	return &Registry{
		reg:             r,
		Accepted:        accepted,
		Duplicates:      duplicates,
		Debounced:       debounced,
		RejectedDevice:  rejDevice,
		RejectedPayload: rejPayload,
		RejectedPin:     rejPin,
		RejectedSkew:    rejSkew,
		IngestLatency:   ingestLatency,
		Flagged:         flagged,
		AutoAccepted:    autoAccepted,
		Validated:       validated,
		Rejected:        rejected,
		Corrected:       corrected,
		ActionFailed:    actionFailed,
		PendingStale:    pendingStale,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
