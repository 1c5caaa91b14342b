// Package directory is the boundary to tenant master data: registered
// terminals, employee pin mappings, shift schedules and tenant tuning.
// The ingestion core only ever sees this interface; tenant resolution,
// employee CRUD and schedule management live outside this service.
package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"punchd/internal/model"
)

type Directory interface {
	// ResolveTerminal maps a terminal serial to its tenant and terminal id.
	// Unknown serials fail with model.ErrDeviceNotRegistered.
	ResolveTerminal(serial string) (tenantID, terminalID string, err error)
	// ResolveEmployee maps a terminal-local pin to a tenant-scoped employee id.
	ResolveEmployee(tenantID, terminalID, pin string) (employeeID string, err error)
	// ShiftFor returns the employee's scheduled window for the day, or nil
	// when the employee is unscheduled.
	ShiftFor(tenantID, employeeID string, day time.Time) (*model.ShiftContext, error)
	EffectiveConfig(tenantID string) model.EffectiveConfig
}

// Terminal is one registered device.
type Terminal struct {
	Serial   string `json:"serial"`
	TenantID string `json:"tenantId"`
	ID       string `json:"id"`
}

// Employee is one pin mapping plus optional shift.
type Employee struct {
	TenantID string `json:"tenantId"`
	Pin      string `json:"pin"`
	ID       string `json:"id"`
	// ShiftStart/ShiftEnd as "HH:MM"; empty means unscheduled.
	ShiftStart string `json:"shiftStart,omitempty"`
	ShiftEnd   string `json:"shiftEnd,omitempty"`
}

// StaticDirectory serves master data from memory. It stands in for the
// external directory service in single-node deployments and tests.
type StaticDirectory struct {
	mu        sync.RWMutex
	terminals map[string]Terminal              // serial
	employees map[string]Employee              // tenant/pin
	configs   map[string]model.EffectiveConfig // tenant
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		terminals: make(map[string]Terminal),
		employees: make(map[string]Employee),
		configs:   make(map[string]model.EffectiveConfig),
	}
}

// file format for LoadFile.
type directoryFile struct {
	Terminals []Terminal                       `json:"terminals"`
	Employees []Employee                       `json:"employees"`
	Configs   map[string]model.EffectiveConfig `json:"configs,omitempty"`
}

// LoadFile reads terminals, employees and tenant configs from a JSON file.
func LoadFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	var df directoryFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("unmarshal directory file: %w", err)
	}
	d := NewStaticDirectory()
	for _, t := range df.Terminals {
		d.AddTerminal(t)
	}
	for _, e := range df.Employees {
		d.AddEmployee(e)
	}
	for tenant, cfg := range df.Configs {
		d.SetConfig(tenant, cfg)
	}
	return d, nil
}

func (d *StaticDirectory) AddTerminal(t Terminal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.terminals[t.Serial] = t
}

func (d *StaticDirectory) AddEmployee(e Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.TenantID+"/"+e.Pin] = e
}

func (d *StaticDirectory) SetConfig(tenantID string, cfg model.EffectiveConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configs[tenantID] = cfg
}

func (d *StaticDirectory) ResolveTerminal(serial string) (string, string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.terminals[serial]
	if !ok {
		return "", "", fmt.Errorf("serial %s: %w", serial, model.ErrDeviceNotRegistered)
	}
	return t.TenantID, t.ID, nil
}

func (d *StaticDirectory) ResolveEmployee(tenantID, terminalID, pin string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[tenantID+"/"+pin]
	if !ok {
		return "", fmt.Errorf("pin %s: %w", pin, model.ErrEmployeeNotFound)
	}
	return e.ID, nil
}

func (d *StaticDirectory) ShiftFor(tenantID, employeeID string, day time.Time) (*model.ShiftContext, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.employees {
		if e.TenantID != tenantID || e.ID != employeeID {
			continue
		}
		if e.ShiftStart == "" || e.ShiftEnd == "" {
			return nil, nil
		}
		start, err := parseClock(e.ShiftStart)
		if err != nil {
			return nil, fmt.Errorf("shift start: %w", err)
		}
		end, err := parseClock(e.ShiftEnd)
		if err != nil {
			return nil, fmt.Errorf("shift end: %w", err)
		}
		return &model.ShiftContext{StartMinutes: start, EndMinutes: end}, nil
	}
	return nil, nil
}

func (d *StaticDirectory) EffectiveConfig(tenantID string) model.EffectiveConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if cfg, ok := d.configs[tenantID]; ok {
		return cfg
	}
	return model.DefaultConfig()
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
