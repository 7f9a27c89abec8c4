// Package photoprismdb reads people out of a PhotoPrism MariaDB instance so
// locally known identities can be seeded from an existing photo library.
package photoprismdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Subject is a named person in PhotoPrism.
type Subject struct {
	UID       string
	Name      string
	FileCount int
}

// ListSubjects returns all non-hidden person subjects, ordered by name.
// Unnamed subjects are skipped; they cannot be matched against gateway
// output which reports names only.
func (p *Pool) ListSubjects(ctx context.Context) ([]Subject, error) {
	query := `
		SELECT subj_uid, subj_name, file_count
		FROM subjects
		WHERE subj_type = 'person'
		  AND subj_hidden = 0
		  AND deleted_at IS NULL
		  AND subj_name <> ''
		ORDER BY subj_name
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.UID, &s.Name, &s.FileCount); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return subjects, nil
}
