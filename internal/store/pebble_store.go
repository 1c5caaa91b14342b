package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"punchd/internal/model"
)

// Key layout:
//
//	r/<tenant>/<id>                         -> record JSON
//	d/<tenant>/<dedupKey>                   -> record id
//	e/<tenant>/<employee>/<day>/<ts>/<id>   -> record id
//
// The e/ index lets LastPunch scan one employee-day prefix in reverse
// instead of iterating the whole keyspace.
type PebbleStore struct {
	mu sync.Mutex // serializes read-modify-write ops (Insert, Transition)
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    8,
		WALBytesPerSync:          1 << 20,
		DisableWAL:               false,
		MaxConcurrentCompactions: func() int { return 2 },
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func pebbleRecKey(tenantID, id string) []byte {
	return []byte("r/" + tenantID + "/" + id)
}

func pebbleDedupKey(tenantID, key string) []byte {
	return []byte("d/" + tenantID + "/" + key)
}

func pebbleDayPrefix(tenantID, employeeID string, day time.Time) []byte {
	return []byte(fmt.Sprintf("e/%s/%s/%s/", tenantID, employeeID, day.UTC().Format("20060102")))
}

func pebbleDayKey(rec model.AttendanceRecord) []byte {
	return []byte(fmt.Sprintf("e/%s/%s/%s/%011d/%s",
		rec.TenantID, rec.EmployeeID, rec.Timestamp.UTC().Format("20060102"),
		rec.Timestamp.Unix(), rec.ID))
}

func encodeRecord(rec model.AttendanceRecord) ([]byte, error) { return json.Marshal(rec) }

func decodeRecord(val []byte) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

func (p *PebbleStore) Insert(rec model.AttendanceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	dk := pebbleDedupKey(rec.TenantID, rec.DedupKey)
	_, closer, err := p.db.Get(dk)
	if err == nil {
		_ = closer.Close()
		return model.ErrDuplicateKey
	}
	if err != pebble.ErrNotFound {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	val, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	wb := p.db.NewBatch()
	_ = wb.Set(pebbleRecKey(rec.TenantID, rec.ID), val, nil)
	_ = wb.Set(dk, []byte(rec.ID), nil)
	_ = wb.Set(pebbleDayKey(rec), []byte(rec.ID), nil)
	if err := wb.Commit(pebble.Sync); err != nil {
		_ = wb.Close()
		return fmt.Errorf("commit insert: %w", err)
	}
	return wb.Close()
}

func (p *PebbleStore) Get(tenantID, id string) (model.AttendanceRecord, bool, error) {
	v, closer, err := p.db.Get(pebbleRecKey(tenantID, id))
	if err == pebble.ErrNotFound {
		return model.AttendanceRecord{}, false, nil
	}
	if err != nil {
		return model.AttendanceRecord{}, false, fmt.Errorf("get record: %w", err)
	}
	defer closer.Close()
	rec, err := decodeRecord(v)
	if err != nil {
		return model.AttendanceRecord{}, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}

func (p *PebbleStore) FindByDedupKey(tenantID, key string) (model.AttendanceRecord, bool, error) {
	v, closer, err := p.db.Get(pebbleDedupKey(tenantID, key))
	if err == pebble.ErrNotFound {
		return model.AttendanceRecord{}, false, nil
	}
	if err != nil {
		return model.AttendanceRecord{}, false, fmt.Errorf("dedup lookup: %w", err)
	}
	id := string(v)
	_ = closer.Close()
	return p.Get(tenantID, id)
}

func (p *PebbleStore) LastPunch(tenantID, employeeID string, before time.Time) (model.AttendanceRecord, bool, error) {
	prefix := pebbleDayPrefix(tenantID, employeeID, before)
	upper := append(append([]byte(nil), prefix...), 0xff)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return model.AttendanceRecord{}, false, fmt.Errorf("day iter: %w", err)
	}
	defer it.Close()
	for ok := it.Last(); ok; ok = it.Prev() {
		id := string(it.Value())
		rec, found, err := p.Get(tenantID, id)
		if err != nil {
			return model.AttendanceRecord{}, false, err
		}
		if !found {
			continue
		}
		if rec.Status == model.StatusRejected || !rec.Timestamp.Before(before) {
			continue
		}
		return rec, true, nil
	}
	return model.AttendanceRecord{}, false, nil
}

func (p *PebbleStore) Transition(tenantID, id string, mutate func(*model.AttendanceRecord) error) (model.AttendanceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, found, err := p.Get(tenantID, id)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if !found {
		return model.AttendanceRecord{}, model.ErrRecordNotFound
	}
	if err := mutate(&rec); err != nil {
		return model.AttendanceRecord{}, err
	}
	val, err := encodeRecord(rec)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("encode record: %w", err)
	}
	if err := p.db.Set(pebbleRecKey(tenantID, id), val, pebble.Sync); err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("write record: %w", err)
	}
	return rec, nil
}

func (p *PebbleStore) Range(fn func(rec model.AttendanceRecord) error) error {
	lower := []byte("r/")
	upper := []byte("r\xff")
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("range iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll replaces the store contents with the provided records (used by restore).
func (p *PebbleStore) LoadAll(recs []model.AttendanceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var toDelete [][]byte
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("load iter: %w", err)
	}
	for it.First(); it.Valid(); it.Next() {
		k := append([]byte(nil), it.Key()...)
		toDelete = append(toDelete, k)
	}
	_ = it.Close()
	wb := p.db.NewBatch()
	for _, k := range toDelete {
		_ = wb.Delete(k, nil)
	}
	for _, rec := range recs {
		val, err := encodeRecord(rec)
		if err != nil {
			_ = wb.Close()
			return fmt.Errorf("encode record: %w", err)
		}
		_ = wb.Set(pebbleRecKey(rec.TenantID, rec.ID), val, nil)
		_ = wb.Set(pebbleDedupKey(rec.TenantID, rec.DedupKey), []byte(rec.ID), nil)
		_ = wb.Set(pebbleDayKey(rec), []byte(rec.ID), nil)
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		_ = wb.Close()
		return fmt.Errorf("commit load: %w", err)
	}
	return wb.Close()
}
