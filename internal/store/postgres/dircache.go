package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-scanner/internal/store"
)

// LookupDirectory returns the cached file count for a directory when the
// stored mtime matches exactly. Any mismatch means the directory changed and
// must be re-enumerated.
func (s *Store) LookupDirectory(ctx context.Context, path string, mtimeMs int64) (int64, bool, error) {
	var cachedMtime, fileCount int64
	err := s.pool.QueryRow(ctx, `
		SELECT mtime_ms, file_count FROM directory_cache WHERE path = $1
	`, path).Scan(&cachedMtime, &fileCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query directory cache: %w", err)
	}
	if cachedMtime != mtimeMs {
		return 0, false, nil
	}
	return fileCount, true, nil
}

// RecordDirectory upserts a cache entry for a freshly enumerated directory.
func (s *Store) RecordDirectory(ctx context.Context, entry store.DirectoryCacheEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO directory_cache (path, mtime_ms, file_count, last_scan_id, scanned_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (path) DO UPDATE SET
			mtime_ms     = EXCLUDED.mtime_ms,
			file_count   = EXCLUDED.file_count,
			last_scan_id = EXCLUDED.last_scan_id,
			scanned_at   = NOW()
	`, entry.Path, entry.MtimeMs, entry.FileCount, entry.LastScanID)
	if err != nil {
		return fmt.Errorf("upsert directory cache: %w", err)
	}
	return nil
}

// InvalidateDirectories removes the entry for prefix itself and every entry
// below prefix + "/". The separator check keeps unrelated siblings that
// merely share a string prefix ("/photos/a" vs "/photos/ab") intact.
// An empty prefix clears the whole cache.
func (s *Store) InvalidateDirectories(ctx context.Context, prefix string) (int64, error) {
	var result sql.Result
	var err error
	if prefix == "" {
		result, err = s.pool.Exec(ctx, "DELETE FROM directory_cache")
	} else {
		result, err = s.pool.Exec(ctx, `
			DELETE FROM directory_cache
			WHERE path = $1 OR left(path, length($1) + 1) = $1 || '/'
		`, prefix)
	}
	if err != nil {
		return 0, fmt.Errorf("invalidate directory cache: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("invalidate directory cache result: %w", err)
	}
	return removed, nil
}
