package store

import (
	"context"
	"time"
)

// SavePhotoParams carries one upsert into the photo table. On conflict with
// an existing hash the path, size, last-seen fields and recognitions are
// overwritten; FirstSeenAt, PhotoDate (first non-nil wins) and the correction
// overlay are preserved.
type SavePhotoParams struct {
	Hash          string
	Path          string
	FileSize      int64
	ScanID        string
	Recognitions  []Recognition
	PhotoDate     *time.Time
	FacesDetected int
}

// ScanCounts are the aggregate counters recorded when a scan run finalizes.
type ScanCounts struct {
	PhotosProcessed int
	PhotosCached    int
	MatchesFound    int
}

// PhotoRepository provides access to photo records keyed by content hash.
type PhotoRepository interface {
	// GetPhoto retrieves a record by content hash, nil if not found.
	GetPhoto(ctx context.Context, hash string) (*PhotoRecord, error)
	// SavePhoto upserts a photo record (see SavePhotoParams for conflict rules).
	SavePhoto(ctx context.Context, params SavePhotoParams) error
	// ApplyCorrection merges a correction into the record's overlay using the
	// replace-by-person rule. Returns false when no record exists for the hash;
	// a correction presumes a prior scan.
	ApplyCorrection(ctx context.Context, hash, personID, personName string, ctype CorrectionType) (bool, error)
	// AppendRecognitionHistory appends an immutable audit record of the raw
	// gateway output for one scan of one photo.
	AppendRecognitionHistory(ctx context.Context, hash, scanID string, recognitions []Recognition) error
	// CountPhotos returns the number of photo records stored.
	CountPhotos(ctx context.Context) (int, error)
	// ClearPhotos removes all photo records, corrections and history.
	ClearPhotos(ctx context.Context) error
}

// PersonRepository provides access to known people.
type PersonRepository interface {
	// FindPersonByName looks a person up by normalized name, nil if unknown.
	FindPersonByName(ctx context.Context, name string) (*Person, error)
	// EnsurePerson finds a person by normalized name or creates one. The
	// second return reports whether a new identity was created, so implicit
	// creation during scanning stays observable.
	EnsurePerson(ctx context.Context, name string) (Person, bool, error)
	// ListPeople returns all known people ordered by name.
	ListPeople(ctx context.Context) ([]Person, error)
}

// ScanRepository manages scan run lifecycle.
type ScanRepository interface {
	// StartScan creates a new scan run for the given source paths.
	StartScan(ctx context.Context, sourcePaths []string) (*ScanRun, error)
	// FinishScan finalizes a run with its counters. Called exactly once per
	// run, including runs that stopped early.
	FinishScan(ctx context.Context, scanID string, counts ScanCounts) error
	// ListScans returns the most recent runs, newest first.
	ListScans(ctx context.Context, limit int) ([]ScanRun, error)
}

// DirectoryCache memoizes directory modification times between walks.
type DirectoryCache interface {
	// LookupDirectory returns the cached file count when the stored mtime
	// matches exactly; ok is false on any mismatch or absence.
	LookupDirectory(ctx context.Context, path string, mtimeMs int64) (fileCount int64, ok bool, err error)
	// RecordDirectory writes an entry for a freshly enumerated directory.
	RecordDirectory(ctx context.Context, entry DirectoryCacheEntry) error
	// InvalidateDirectories removes the entry for prefix itself plus every
	// entry under prefix + separator. Unrelated siblings sharing a string
	// prefix are untouched. An empty prefix clears everything.
	// Returns the number of entries removed.
	InvalidateDirectories(ctx context.Context, prefix string) (int64, error)
}

// Store is the full persistent interface the scanner and review surfaces
// depend on. Backends: postgres (production) and mock (tests).
type Store interface {
	PhotoRepository
	PersonRepository
	ScanRepository
	DirectoryCache

	// Stats summarizes store contents.
	Stats(ctx context.Context) (*Stats, error)
	// Close releases the underlying resources.
	Close() error
}
