// Package mock provides an in-memory implementation of store.Store for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-scanner/internal/store"
)

// HistoryEntry is one appended recognition-history record.
type HistoryEntry struct {
	Hash         string
	ScanID       string
	Recognitions []store.Recognition
	CreatedAt    time.Time
}

// Store is an in-memory mock implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	photos  map[string]*store.PhotoRecord
	people  map[string]store.Person // keyed by normalized name
	scans   []store.ScanRun
	dirs    map[string]store.DirectoryCacheEntry
	History []HistoryEntry

	// Error injection
	GetPhotoError        error
	SavePhotoError       error
	ApplyCorrectionError error
	EnsurePersonError    error
	StartScanError       error
	FinishScanError      error
	DirLookupError       error
	DirRecordError       error

	// Call counters
	DirLookups int
	SaveCalls  int
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{
		photos: make(map[string]*store.PhotoRecord),
		people: make(map[string]store.Person),
		dirs:   make(map[string]store.DirectoryCacheEntry),
	}
}

func copyRecord(p *store.PhotoRecord) *store.PhotoRecord {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Recognitions = append([]store.Recognition(nil), p.Recognitions...)
	cp.Corrections = append([]store.Correction(nil), p.Corrections...)
	if p.PhotoDate != nil {
		d := *p.PhotoDate
		cp.PhotoDate = &d
	}
	return &cp
}

// GetPhoto retrieves a record by content hash.
func (m *Store) GetPhoto(ctx context.Context, hash string) (*store.PhotoRecord, error) {
	if m.GetPhotoError != nil {
		return nil, m.GetPhotoError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecord(m.photos[hash]), nil
}

// SavePhoto upserts a photo record with the same conflict rules as the
// postgres backend: first-seen time and photo date are first-write-wins,
// corrections are untouched.
func (m *Store) SavePhoto(ctx context.Context, params store.SavePhotoParams) error {
	if m.SavePhotoError != nil {
		return m.SavePhotoError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++

	now := time.Now()
	existing := m.photos[params.Hash]
	rec := &store.PhotoRecord{
		Hash:          params.Hash,
		Path:          params.Path,
		FileSize:      params.FileSize,
		FirstSeenAt:   now,
		LastSeenAt:    now,
		LastScanID:    params.ScanID,
		PhotoDate:     params.PhotoDate,
		FacesDetected: params.FacesDetected,
		Recognitions:  append([]store.Recognition(nil), params.Recognitions...),
	}
	if existing != nil {
		rec.FirstSeenAt = existing.FirstSeenAt
		rec.Corrections = existing.Corrections
		if existing.PhotoDate != nil {
			rec.PhotoDate = existing.PhotoDate
		}
	}
	m.photos[params.Hash] = rec
	return nil
}

// ApplyCorrection merges a correction into an existing record's overlay.
func (m *Store) ApplyCorrection(ctx context.Context, hash, personID, personName string, ctype store.CorrectionType) (bool, error) {
	if m.ApplyCorrectionError != nil {
		return false, m.ApplyCorrectionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.photos[hash]
	if !ok {
		return false, nil
	}
	rec.Corrections = store.MergeCorrection(rec.Corrections, store.Correction{
		PersonID:   personID,
		PersonName: personName,
		Type:       ctype,
		CreatedAt:  time.Now(),
	})
	return true, nil
}

// AppendRecognitionHistory appends an audit record.
func (m *Store) AppendRecognitionHistory(ctx context.Context, hash, scanID string, recognitions []store.Recognition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.History = append(m.History, HistoryEntry{
		Hash:         hash,
		ScanID:       scanID,
		Recognitions: append([]store.Recognition(nil), recognitions...),
		CreatedAt:    time.Now(),
	})
	return nil
}

// CountPhotos returns the number of stored photo records.
func (m *Store) CountPhotos(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.photos), nil
}

// ClearPhotos removes all photo records and history.
func (m *Store) ClearPhotos(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = make(map[string]*store.PhotoRecord)
	m.History = nil
	return nil
}

// FindPersonByName looks a person up by normalized name.
func (m *Store) FindPersonByName(ctx context.Context, name string) (*store.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.people[store.NormalizePersonName(name)]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

// EnsurePerson finds or creates a person by normalized name.
func (m *Store) EnsurePerson(ctx context.Context, name string) (store.Person, bool, error) {
	if m.EnsurePersonError != nil {
		return store.Person{}, false, m.EnsurePersonError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := store.NormalizePersonName(name)
	if p, ok := m.people[key]; ok {
		return p, false, nil
	}
	p := store.Person{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	m.people[key] = p
	return p, true, nil
}

// ListPeople returns all known people ordered by name.
func (m *Store) ListPeople(ctx context.Context) ([]store.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Person, 0, len(m.people))
	for _, p := range m.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddPerson seeds a person into the mock store.
func (m *Store) AddPerson(p store.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people[store.NormalizePersonName(p.Name)] = p
}

// StartScan creates a new scan run.
func (m *Store) StartScan(ctx context.Context, sourcePaths []string) (*store.ScanRun, error) {
	if m.StartScanError != nil {
		return nil, m.StartScanError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	run := store.ScanRun{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		SourcePaths: append([]string(nil), sourcePaths...),
	}
	m.scans = append(m.scans, run)
	cp := run
	return &cp, nil
}

// FinishScan finalizes a run with its counters.
func (m *Store) FinishScan(ctx context.Context, scanID string, counts store.ScanCounts) error {
	if m.FinishScanError != nil {
		return m.FinishScanError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.scans {
		if m.scans[i].ID != scanID {
			continue
		}
		if m.scans[i].CompletedAt != nil {
			return fmt.Errorf("scan %s already finalized", scanID)
		}
		now := time.Now()
		m.scans[i].CompletedAt = &now
		m.scans[i].DurationMs = now.Sub(m.scans[i].StartedAt).Milliseconds()
		m.scans[i].PhotosProcessed = counts.PhotosProcessed
		m.scans[i].PhotosCached = counts.PhotosCached
		m.scans[i].MatchesFound = counts.MatchesFound
		return nil
	}
	return fmt.Errorf("scan %s not found", scanID)
}

// ListScans returns the most recent runs, newest first.
func (m *Store) ListScans(ctx context.Context, limit int) ([]store.ScanRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]store.ScanRun(nil), m.scans...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Scans returns all recorded scan runs in creation order.
func (m *Store) Scans() []store.ScanRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.ScanRun(nil), m.scans...)
}

// LookupDirectory returns the cached file count on an exact mtime match.
func (m *Store) LookupDirectory(ctx context.Context, path string, mtimeMs int64) (int64, bool, error) {
	if m.DirLookupError != nil {
		return 0, false, m.DirLookupError
	}
	m.mu.Lock()
	m.DirLookups++
	entry, ok := m.dirs[path]
	m.mu.Unlock()
	if !ok || entry.MtimeMs != mtimeMs {
		return 0, false, nil
	}
	return entry.FileCount, true, nil
}

// RecordDirectory stores a directory cache entry.
func (m *Store) RecordDirectory(ctx context.Context, entry store.DirectoryCacheEntry) error {
	if m.DirRecordError != nil {
		return m.DirRecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[entry.Path] = entry
	return nil
}

// InvalidateDirectories removes entries for prefix and everything below it.
func (m *Store) InvalidateDirectories(ctx context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for path := range m.dirs {
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			delete(m.dirs, path)
			removed++
		}
	}
	return removed, nil
}

// DirectoryEntry returns the stored entry for a path, for test assertions.
func (m *Store) DirectoryEntry(path string) (store.DirectoryCacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.dirs[path]
	return entry, ok
}

// Stats summarizes mock store contents.
func (m *Store) Stats(ctx context.Context) (*store.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	corrections := 0
	for _, p := range m.photos {
		corrections += len(p.Corrections)
	}
	return &store.Stats{
		Photos:           len(m.photos),
		People:           len(m.people),
		Corrections:      corrections,
		Scans:            len(m.scans),
		DirectoryEntries: len(m.dirs),
	}, nil
}

// Close is a no-op for the mock store.
func (m *Store) Close() error {
	return nil
}
