// Package store defines the persistent data model for scanned photos:
// photo records keyed by content hash, the human correction overlay,
// scan runs and the directory walk cache.
package store

import (
	"time"
)

// CorrectionType is the kind of human decision recorded for one person
// on one photo.
type CorrectionType string

const (
	// CorrectionApproved confirms an existing recognition is correct.
	CorrectionApproved CorrectionType = "approved"
	// CorrectionFalsePositive marks a raw recognition as wrong. The person
	// is excluded from effective matches for this photo.
	CorrectionFalsePositive CorrectionType = "false_positive"
	// CorrectionFalseNegative records a match the gateway missed. The person
	// is added to effective matches as a synthesized 100% entry.
	CorrectionFalseNegative CorrectionType = "false_negative"
)

// SearchMethod identifies how a recognition entry was produced.
type SearchMethod string

const (
	SearchRecognition  SearchMethod = "recognition"
	SearchVerification SearchMethod = "verification"
	SearchManual       SearchMethod = "manual"
)

// Recognition is a single raw match reported by the recognition gateway,
// persisted as part of a PhotoRecord.
type Recognition struct {
	PersonID     string       `json:"person_id"`
	PersonName   string       `json:"person_name"`
	Confidence   float64      `json:"confidence"` // percentage, 0-100
	FaceID       string       `json:"face_id,omitempty"`
	BoundingBox  []float64    `json:"bbox,omitempty"` // [x1, y1, x2, y2] in pixels
	SearchMethod SearchMethod `json:"search_method"`
}

// Correction is a human decision for one person on one photo. At most one
// correction per person is active on a photo; re-applying replaces it.
type Correction struct {
	PersonID   string         `json:"person_id"`
	PersonName string         `json:"person_name"`
	Type       CorrectionType `json:"type"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PhotoRecord is the durable record for one file content, keyed by its
// fingerprint digest. Path is the last known location and may go stale when
// the file moves; the hash identity never does.
type PhotoRecord struct {
	Hash          string       `json:"hash"`
	Path          string       `json:"path"`
	FileSize      int64        `json:"file_size"`
	FirstSeenAt   time.Time    `json:"first_seen_at"`
	LastSeenAt    time.Time    `json:"last_seen_at"`
	LastScanID    string       `json:"last_scan_id"`
	PhotoDate     *time.Time   `json:"photo_date,omitempty"` // first non-nil value wins, never overwritten
	FacesDetected int          `json:"faces_detected"`
	Recognitions  []Recognition `json:"recognitions"`
	Corrections   []Correction  `json:"corrections"`
}

// ScanRun records one scan invocation. Finalized exactly once, even when the
// run stops early; immutable afterwards.
type ScanRun struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMs      int64      `json:"duration_ms"`
	SourcePaths     []string   `json:"source_paths"`
	PhotosProcessed int        `json:"photos_processed"`
	PhotosCached    int        `json:"photos_cached"`
	MatchesFound    int        `json:"matches_found"`
}

// DirectoryCacheEntry memoizes a directory's modification time so unchanged
// directories can be skipped on later walks.
type DirectoryCacheEntry struct {
	Path       string    `json:"path"`
	MtimeMs    int64     `json:"mtime_ms"`
	FileCount  int64     `json:"file_count"`
	LastScanID string    `json:"last_scan_id"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// Person is a known identity. People are created explicitly (people sync)
// or implicitly when the gateway reports a name not yet known locally.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes store contents for reporting.
type Stats struct {
	Photos           int `json:"photos"`
	People           int `json:"people"`
	Corrections      int `json:"corrections"`
	Scans            int `json:"scans"`
	DirectoryEntries int `json:"directory_entries"`
}
