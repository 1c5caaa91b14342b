package directory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"punchd/internal/model"
)

func TestStaticDirectory_ResolveTerminal(t *testing.T) {
	d := NewStaticDirectory()
	d.AddTerminal(Terminal{Serial: "SN1", TenantID: "t1", ID: "term1"})

	tenant, terminal, err := d.ResolveTerminal("SN1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tenant != "t1" || terminal != "term1" {
		t.Fatalf("got %s/%s", tenant, terminal)
	}

	_, _, err = d.ResolveTerminal("NOPE")
	if !errors.Is(err, model.ErrDeviceNotRegistered) {
		t.Fatalf("want ErrDeviceNotRegistered, got %v", err)
	}
}

func TestStaticDirectory_ResolveEmployee(t *testing.T) {
	d := NewStaticDirectory()
	d.AddEmployee(Employee{TenantID: "t1", Pin: "100", ID: "emp1"})

	id, err := d.ResolveEmployee("t1", "term1", "100")
	if err != nil || id != "emp1" {
		t.Fatalf("got %s, %v", id, err)
	}
	if _, err := d.ResolveEmployee("t1", "term1", "999"); !errors.Is(err, model.ErrEmployeeNotFound) {
		t.Fatalf("want ErrEmployeeNotFound, got %v", err)
	}
	// pins are tenant-scoped
	if _, err := d.ResolveEmployee("t2", "term1", "100"); !errors.Is(err, model.ErrEmployeeNotFound) {
		t.Fatalf("want ErrEmployeeNotFound across tenants, got %v", err)
	}
}

func TestStaticDirectory_ShiftFor(t *testing.T) {
	d := NewStaticDirectory()
	d.AddEmployee(Employee{TenantID: "t1", Pin: "100", ID: "emp1", ShiftStart: "08:00", ShiftEnd: "16:00"})
	d.AddEmployee(Employee{TenantID: "t1", Pin: "200", ID: "emp2", ShiftStart: "21:00", ShiftEnd: "05:00"})
	d.AddEmployee(Employee{TenantID: "t1", Pin: "300", ID: "emp3"})

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	shift, err := d.ShiftFor("t1", "emp1", day)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if shift == nil || shift.StartMinutes != 8*60 || shift.EndMinutes != 16*60 {
		t.Fatalf("shift: %+v", shift)
	}

	night, err := d.ShiftFor("t1", "emp2", day)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if night == nil || !night.NightShift() {
		t.Fatalf("night shift: %+v", night)
	}

	// unscheduled employee has no shift context, not an error
	none, err := d.ShiftFor("t1", "emp3", day)
	if err != nil || none != nil {
		t.Fatalf("unscheduled: %+v, %v", none, err)
	}
	unknown, err := d.ShiftFor("t1", "ghost", day)
	if err != nil || unknown != nil {
		t.Fatalf("unknown employee: %+v, %v", unknown, err)
	}
}

func TestStaticDirectory_EffectiveConfigFallback(t *testing.T) {
	d := NewStaticDirectory()
	if got := d.EffectiveConfig("t1"); got != model.DefaultConfig() {
		t.Fatalf("want defaults, got %+v", got)
	}
	cfg := model.DefaultConfig()
	cfg.ShiftMarginMinutes = 60
	d.SetConfig("t1", cfg)
	if got := d.EffectiveConfig("t1"); got.ShiftMarginMinutes != 60 {
		t.Fatalf("tenant override lost: %+v", got)
	}
	if got := d.EffectiveConfig("t2"); got.ShiftMarginMinutes != 120 {
		t.Fatalf("other tenants must keep defaults: %+v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.json")
	content := `{
  "terminals": [{"serial": "SN1", "tenantId": "t1", "id": "term1"}],
  "employees": [{"tenantId": "t1", "pin": "100", "id": "emp1", "shiftStart": "08:00", "shiftEnd": "16:00"}],
  "configs": {"t1": {"shiftMarginMinutes": 90, "ambiguityThreshold": 0.8, "detectionEnabled": true}}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := d.ResolveTerminal("SN1"); err != nil {
		t.Fatalf("terminal: %v", err)
	}
	if id, err := d.ResolveEmployee("t1", "term1", "100"); err != nil || id != "emp1" {
		t.Fatalf("employee: %s, %v", id, err)
	}
	if cfg := d.EffectiveConfig("t1"); cfg.ShiftMarginMinutes != 90 || cfg.AmbiguityThreshold != 0.8 {
		t.Fatalf("config: %+v", cfg)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
