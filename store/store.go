package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"opsboard/pkg/logger"
)

var (
	ErrUnknownCollection = errors.New("collection not found")
	ErrRecordNotFound    = errors.New("item not found")
)

// ActivityCap bounds the activity log; older entries are discarded.
const ActivityCap = 100

// Record is a schema-less attribute bag. Every record in a collection carries
// a positive integer "id", assigned by the store and unique within that
// collection.
type Record map[string]any

// ID returns the record's id, if it has a usable one. Records that went
// through a JSON round trip carry float64 numbers, freshly created ones carry
// ints, so both are accepted.
func (r Record) ID() (int, bool) {
	return asID(r["id"])
}

func asID(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n > 0
	case int64:
		return int(n), n > 0
	case float64:
		i := int(n)
		return i, float64(i) == n && i > 0
	default:
		return 0, false
	}
}

// Store owns every collection plus the settings map, and mirrors all of it
// into a single JSON file. Each mutation rewrites the file before returning;
// if the write fails the in-memory change is rolled back and the error
// surfaced, so memory never silently runs ahead of disk.
type Store struct {
	mu          sync.RWMutex
	path        string
	collections map[string][]Record
	settings    map[string]any
}

func defaultCollections() map[string][]Record {
	names := []string{
		"clients", "team", "projects", "automations", "finance",
		"activity", "calendar", "orders", "contracts", "subscriptions",
		"lab_orders",
	}
	m := make(map[string][]Record, len(names))
	for _, n := range names {
		m[n] = []Record{}
	}
	return m
}

func defaultSettings() map[string]any {
	return map[string]any{
		"companyName": "Studio",
		"brand1":      "Studio One",
		"brand2":      "Studio Lab",
		"email":       "hello@example.com",
	}
}

// Open loads the store from path, or synthesizes defaults if the file is
// absent or unreadable, then writes the file once so disk and memory agree
// from the start. Top-level keys missing from the file are back-filled from
// the defaults; unknown extra keys are kept as collections.
func Open(path string) (*Store, error) {
	s := &Store{
		path:        path,
		collections: defaultCollections(),
		settings:    defaultSettings(),
	}
	s.load()
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Sugar.Errorf("DB load error: %v", err)
		}
		return
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Sugar.Errorf("DB parse error, falling back to defaults: %v", err)
		return
	}

	for key, val := range doc {
		if key == "settings" {
			var settings map[string]any
			if err := json.Unmarshal(val, &settings); err != nil {
				logger.Sugar.Errorf("DB settings parse error, keeping defaults: %v", err)
				continue
			}
			s.settings = settings
			continue
		}
		var records []Record
		if err := json.Unmarshal(val, &records); err != nil {
			logger.Sugar.Errorf("DB collection %q parse error, keeping default: %v", key, err)
			continue
		}
		if records == nil {
			records = []Record{}
		}
		s.collections[key] = records
	}
}

// persistLocked rewrites the whole store file. Callers must hold at least a
// read view that excludes concurrent mutation; every mutating method calls it
// while holding the write lock.
func (s *Store) persistLocked() error {
	doc := make(map[string]any, len(s.collections)+1)
	for name, records := range s.collections {
		doc[name] = records
	}
	doc["settings"] = s.settings

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	// Write-temp-then-rename so a concurrent reader of the file never sees a
	// partial document.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// Collections lists the known collection names.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// List returns the full sequence for a collection in insertion order.
func (s *Store) List(collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.collections[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// GetByID returns one record.
func (s *Store) GetByID(collection string, id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.collections[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}
	for _, r := range records {
		if rid, ok := r.ID(); ok && rid == id {
			return r, nil
		}
	}
	return nil, ErrRecordNotFound
}

// Create appends a new record with id = max(existing)+1 (1 for an empty
// collection). Any id supplied in fields is ignored.
func (s *Store) Create(collection string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.collections[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}

	item := make(Record, len(fields)+1)
	for k, v := range fields {
		item[k] = v
	}
	item["id"] = nextID(records)

	s.collections[collection] = append(records, item)
	if err := s.persistLocked(); err != nil {
		s.collections[collection] = records
		return nil, err
	}
	return item, nil
}

func nextID(records []Record) int {
	max := 0
	for _, r := range records {
		if id, ok := r.ID(); ok && id > max {
			max = id
		}
	}
	return max + 1
}

// Update merges fields onto the existing record, shallow and last-write-wins
// per field. The id is immutable.
func (s *Store) Update(collection string, id int, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.collections[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return nil, ErrRecordNotFound
	}

	prev := records[idx]
	merged := make(Record, len(prev)+len(fields))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	merged["id"] = id

	records[idx] = merged
	if err := s.persistLocked(); err != nil {
		records[idx] = prev
		return nil, err
	}
	return merged, nil
}

// Delete removes and returns the record.
func (s *Store) Delete(collection string, id int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.collections[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return nil, ErrRecordNotFound
	}

	removed := records[idx]
	remaining := make([]Record, 0, len(records)-1)
	remaining = append(remaining, records[:idx]...)
	remaining = append(remaining, records[idx+1:]...)

	s.collections[collection] = remaining
	if err := s.persistLocked(); err != nil {
		s.collections[collection] = records
		return nil, err
	}
	return removed, nil
}

func indexOf(records []Record, id int) int {
	for i, r := range records {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

// ReplaceAll swaps in a whole new sequence for the collection. Incoming ids
// are taken as-is; uniqueness is the caller's responsibility.
func (s *Store) ReplaceAll(collection string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.collections[collection]
	if !ok {
		return ErrUnknownCollection
	}
	if records == nil {
		records = []Record{}
	}
	s.collections[collection] = records
	if err := s.persistLocked(); err != nil {
		s.collections[collection] = prev
		return err
	}
	return nil
}

// Settings returns a copy of the settings map.
func (s *Store) Settings() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// UpdateSettings merges fields into the settings map and returns the result.
// Settings are merge-only; keys are never removed.
func (s *Store) UpdateSettings(fields map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.settings
	merged := make(map[string]any, len(prev)+len(fields))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	s.settings = merged
	if err := s.persistLocked(); err != nil {
		s.settings = prev
		return nil, err
	}
	out := make(map[string]any, len(merged))
	for k, v := range merged {
		out[k] = v
	}
	return out, nil
}

// AddActivity prepends an entry to the bounded activity log and persists.
func (s *Store) AddActivity(action, detail string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := Record{
		"action": action,
		"detail": detail,
		"date":   time.Now().UTC().Format(time.RFC3339),
	}
	prev := s.collections["activity"]
	log := make([]Record, 0, len(prev)+1)
	log = append(log, entry)
	log = append(log, prev...)
	if len(log) > ActivityCap {
		log = log[:ActivityCap]
	}
	s.collections["activity"] = log
	if err := s.persistLocked(); err != nil {
		s.collections["activity"] = prev
		return nil, err
	}
	return entry, nil
}

// Snapshot returns the full current state: every collection plus settings.
// Slices are copied; records themselves are shared and must be treated as
// read-only by consumers.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]any, len(s.collections)+1)
	for name, records := range s.collections {
		cp := make([]Record, len(records))
		copy(cp, records)
		snap[name] = cp
	}
	settings := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		settings[k] = v
	}
	snap["settings"] = settings
	return snap
}
