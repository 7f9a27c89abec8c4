package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-scanner/internal/store"
	"github.com/lib/pq"
)

// GetPhoto retrieves a photo record by content hash, nil if not found.
func (s *Store) GetPhoto(ctx context.Context, hash string) (*store.PhotoRecord, error) {
	query := `
		SELECT hash, path, file_size, first_seen_at, last_seen_at,
		       COALESCE(last_scan_id, ''), photo_date, faces_detected
		FROM photos
		WHERE hash = $1
	`

	var rec store.PhotoRecord
	var photoDate sql.NullTime
	err := s.pool.QueryRow(ctx, query, hash).Scan(
		&rec.Hash, &rec.Path, &rec.FileSize, &rec.FirstSeenAt, &rec.LastSeenAt,
		&rec.LastScanID, &photoDate, &rec.FacesDetected,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query photo: %w", err)
	}
	if photoDate.Valid {
		rec.PhotoDate = &photoDate.Time
	}

	if rec.Recognitions, err = s.getRecognitions(ctx, hash); err != nil {
		return nil, err
	}
	if rec.Corrections, err = s.getCorrections(ctx, hash); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (s *Store) getRecognitions(ctx context.Context, hash string) ([]store.Recognition, error) {
	query := `
		SELECT person_id, person_name, confidence, COALESCE(face_id, ''), bbox, search_method
		FROM recognitions
		WHERE photo_hash = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, hash)
	if err != nil {
		return nil, fmt.Errorf("query recognitions: %w", err)
	}
	defer rows.Close()

	var out []store.Recognition
	for rows.Next() {
		var r store.Recognition
		var bbox pq.Float64Array
		if err := rows.Scan(&r.PersonID, &r.PersonName, &r.Confidence, &r.FaceID, &bbox, &r.SearchMethod); err != nil {
			return nil, fmt.Errorf("scan recognition: %w", err)
		}
		r.BoundingBox = []float64(bbox)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recognitions: %w", err)
	}
	return out, nil
}

func (s *Store) getCorrections(ctx context.Context, hash string) ([]store.Correction, error) {
	query := `
		SELECT person_id, person_name, type, created_at
		FROM corrections
		WHERE photo_hash = $1
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query, hash)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []store.Correction
	for rows.Next() {
		var c store.Correction
		if err := rows.Scan(&c.PersonID, &c.PersonName, &c.Type, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrections: %w", err)
	}
	return out, nil
}

// SavePhoto upserts a photo record and replaces its recognitions. On conflict
// the existing first_seen_at and photo_date survive (first write wins for the
// date) and the correction overlay is left untouched.
func (s *Store) SavePhoto(ctx context.Context, params store.SavePhotoParams) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO photos (hash, path, file_size, last_scan_id, photo_date, faces_detected)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			path           = EXCLUDED.path,
			file_size      = EXCLUDED.file_size,
			last_seen_at   = NOW(),
			last_scan_id   = EXCLUDED.last_scan_id,
			photo_date     = COALESCE(photos.photo_date, EXCLUDED.photo_date),
			faces_detected = EXCLUDED.faces_detected
	`, params.Hash, params.Path, params.FileSize, params.ScanID, params.PhotoDate, params.FacesDetected)
	if err != nil {
		return fmt.Errorf("upsert photo: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recognitions WHERE photo_hash = $1", params.Hash); err != nil {
		return fmt.Errorf("clear recognitions: %w", err)
	}

	for _, r := range params.Recognitions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recognitions (photo_hash, person_id, person_name, confidence, face_id, bbox, search_method)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, params.Hash, r.PersonID, r.PersonName, r.Confidence, r.FaceID, pq.Array(r.BoundingBox), r.SearchMethod)
		if err != nil {
			return fmt.Errorf("insert recognition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit photo save: %w", err)
	}
	return nil
}

// ApplyCorrection merges a correction using the replace-by-person rule.
// Returns false when no photo record exists for the hash.
func (s *Store) ApplyCorrection(ctx context.Context, hash, personID, personName string, ctype store.CorrectionType) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM photos WHERE hash = $1)", hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check photo exists: %w", err)
	}
	if !exists {
		return false, nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO corrections (photo_hash, person_id, person_name, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (photo_hash, person_id) DO UPDATE SET
			person_name = EXCLUDED.person_name,
			type        = EXCLUDED.type,
			created_at  = NOW()
	`, hash, personID, personName, ctype)
	if err != nil {
		return false, fmt.Errorf("upsert correction: %w", err)
	}
	return true, nil
}

// AppendRecognitionHistory appends an immutable audit record of raw gateway
// output for one scan of one photo.
func (s *Store) AppendRecognitionHistory(ctx context.Context, hash, scanID string, recognitions []store.Recognition) error {
	payload, err := json.Marshal(recognitions)
	if err != nil {
		return fmt.Errorf("marshal recognition history: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO recognition_history (photo_hash, scan_id, recognitions)
		VALUES ($1, $2, $3)
	`, hash, scanID, payload)
	if err != nil {
		return fmt.Errorf("insert recognition history: %w", err)
	}
	return nil
}

// CountPhotos returns the number of photo records stored.
func (s *Store) CountPhotos(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photos").Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// ClearPhotos removes all photo records, corrections and history.
func (s *Store) ClearPhotos(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM photos"); err != nil {
		return fmt.Errorf("clear photos: %w", err)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM recognition_history"); err != nil {
		return fmt.Errorf("clear recognition history: %w", err)
	}
	return nil
}
