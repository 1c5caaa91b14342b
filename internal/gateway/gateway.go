// Package gateway is the protocol boundary: terminal push ingestion on one
// side, the reviewer validation API on the other. Terminals only ever see
// protocol acknowledgments, never raw errors; reviewers get the specific
// failure reason per item.
package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"punchd/internal/directory"
	"punchd/internal/ingest"
	"punchd/internal/metrics"
	"punchd/internal/model"
	"punchd/internal/workflow"
)

// Table identifiers multiplexed over the terminal push channel. Only the
// attendance log produces punches; the rest are acknowledged as no-ops.
const (
	tableAttendance      = "ATTLOG"
	tableAttendanceAlias = "attendance"
)

// ackOK is the acknowledgment terminal firmware expects on success; sending
// anything else makes the device retry. ackAuthFail surfaces misconfigured
// devices to operators without triggering a retry loop.
const (
	ackOK       = "OK"
	ackAuthFail = "ERROR: unregistered device"
)

// PushRequest is the terminal-origin payload shape.
type PushRequest struct {
	TerminalSerial string   `json:"sn"`
	Table          string   `json:"table"`
	Stamp          string   `json:"stamp,omitempty"`
	Data           PushData `json:"data"`
}

type PushData struct {
	Pin    string `json:"pin"`
	Time   string `json:"time"`
	Status string `json:"status"`
	Verify string `json:"verify"`
}

type validateRequest struct {
	Action        string           `json:"action"`
	CorrectedType *model.PunchType `json:"correctedType,omitempty"`
	Note          string           `json:"note,omitempty"`
}

type bulkRequest struct {
	Items []workflow.Request `json:"items"`
}

type Server struct {
	echo     *echo.Echo
	pipeline *ingest.Pipeline
	flow     *workflow.Workflow
	dir      directory.Directory
	met      *metrics.Registry
}

func New(pipeline *ingest.Pipeline, flow *workflow.Workflow, dir directory.Directory, met *metrics.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, pipeline: pipeline, flow: flow, dir: dir, met: met}

	e.POST("/iclock/push", s.handlePush)
	e.POST("/api/v1/validations/:id", s.handleValidate)
	e.POST("/api/v1/validations/bulk", s.handleBulk)
	e.GET("/metrics", echo.WrapHandler(met.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return s
}

func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// handlePush accepts one terminal push. The device must never be told to
// retry a semantically-rejected event, so every downstream outcome maps to
// the OK acknowledgment; only an unregistered serial gets the auth-failure
// acknowledgment.
func (s *Server) handlePush(c echo.Context) error {
	var req PushRequest
	if err := c.Bind(&req); err != nil {
		s.met.RejectedPayload.Inc()
		return c.String(http.StatusOK, ackOK)
	}

	tenantID, terminalID, err := s.dir.ResolveTerminal(req.TerminalSerial)
	if err != nil {
		s.met.RejectedDevice.Inc()
		log.Printf("push: serial %q: %v", req.TerminalSerial, err)
		return c.String(http.StatusUnauthorized, ackAuthFail)
	}

	if req.Table != tableAttendance && req.Table != tableAttendanceAlias {
		// terminals multiplex several data kinds over this channel
		return c.String(http.StatusOK, ackOK)
	}

	ev := model.RawPunchEvent{
		TenantID:       tenantID,
		TerminalSerial: req.TerminalSerial,
		TerminalID:     terminalID,
		Pin:            req.Data.Pin,
		Time:           req.Data.Time,
		Status:         req.Data.Status,
		Verify:         req.Data.Verify,
		Vendor: map[string]any{
			"sn": req.TerminalSerial, "table": req.Table, "stamp": req.Stamp,
			"pin": req.Data.Pin, "time": req.Data.Time,
			"status": req.Data.Status, "verify": req.Data.Verify,
		},
	}
	if _, err := s.pipeline.Ingest(ev); err != nil {
		// surfaced to operational monitoring only
		log.Printf("push: tenant=%s terminal=%s: %v", tenantID, terminalID, err)
	}
	return c.String(http.StatusOK, ackOK)
}

func (s *Server) handleValidate(c echo.Context) error {
	tenantID := c.Request().Header.Get("X-Tenant-ID")
	if tenantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing X-Tenant-ID"})
	}
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed body"})
	}
	rec, err := s.flow.Apply(tenantID, workflow.Request{
		AttendanceID:  c.Param("id"),
		Action:        workflow.Action(req.Action),
		CorrectedType: req.CorrectedType,
		Note:          req.Note,
	})
	if err != nil {
		return c.JSON(actionStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleBulk(c echo.Context) error {
	tenantID := c.Request().Header.Get("X-Tenant-ID")
	if tenantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing X-Tenant-ID"})
	}
	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed body"})
	}
	results := s.flow.ApplyBulk(tenantID, req.Items)
	return c.JSON(http.StatusOK, results)
}

func actionStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrMissingCorrectedType), errors.Is(err, model.ErrMalformedPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
