// Package archive exports point-in-time snapshots of the attendance store
// and restores them, replaying the audit trail past the snapshot boundary.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"punchd/internal/model"
	"punchd/internal/store"
)

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st store.Store) error
}

type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st store.Store) error {
	if err := os.MkdirAll(filepath.Join(f.baseDir, snapshotID), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	file := filepath.Join(f.baseDir, snapshotID, "records.json")
	out, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer out.Close()

	var dump []model.AttendanceRecord
	if err := st.Range(func(rec model.AttendanceRecord) error {
		dump = append(dump, rec)
		return nil
	}); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
