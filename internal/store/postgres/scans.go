package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-scanner/internal/store"
	"github.com/lib/pq"
)

// StartScan creates a new scan run for the given source paths.
func (s *Store) StartScan(ctx context.Context, sourcePaths []string) (*store.ScanRun, error) {
	run := &store.ScanRun{
		ID:          uuid.NewString(),
		SourcePaths: sourcePaths,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO scans (id, source_paths)
		VALUES ($1, $2)
		RETURNING started_at
	`, run.ID, pq.Array(sourcePaths)).Scan(&run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	return run, nil
}

// FinishScan finalizes a scan run with its counters. A completed run is
// immutable; finalizing twice is an error.
func (s *Store) FinishScan(ctx context.Context, scanID string, counts store.ScanCounts) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE scans SET
			completed_at     = NOW(),
			duration_ms      = (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::BIGINT,
			photos_processed = $2,
			photos_cached    = $3,
			matches_found    = $4
		WHERE id = $1 AND completed_at IS NULL
	`, scanID, counts.PhotosProcessed, counts.PhotosCached, counts.MatchesFound)
	if err != nil {
		return fmt.Errorf("finalize scan: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize scan result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("scan %s not found or already finalized", scanID)
	}
	return nil
}

// ListScans returns the most recent scan runs, newest first.
func (s *Store) ListScans(ctx context.Context, limit int) ([]store.ScanRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, completed_at, duration_ms, source_paths,
		       photos_processed, photos_cached, matches_found
		FROM scans
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []store.ScanRun
	for rows.Next() {
		var run store.ScanRun
		var completedAt sql.NullTime
		var paths pq.StringArray
		err := rows.Scan(
			&run.ID, &run.StartedAt, &completedAt, &run.DurationMs, &paths,
			&run.PhotosProcessed, &run.PhotosCached, &run.MatchesFound,
		)
		if err != nil {
			return nil, fmt.Errorf("scan scan run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		run.SourcePaths = []string(paths)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}
