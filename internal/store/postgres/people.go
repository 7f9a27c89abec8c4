package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-scanner/internal/store"
)

// FindPersonByName looks a person up by normalized name, nil if unknown.
func (s *Store) FindPersonByName(ctx context.Context, name string) (*store.Person, error) {
	var p store.Person
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM people WHERE normalized_name = $1
	`, store.NormalizePersonName(name)).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &p, nil
}

// EnsurePerson finds a person by normalized name or creates one. The second
// return reports whether a new identity was created.
func (s *Store) EnsurePerson(ctx context.Context, name string) (store.Person, bool, error) {
	existing, err := s.FindPersonByName(ctx, name)
	if err != nil {
		return store.Person{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	id := uuid.NewString()
	var p store.Person
	// Concurrent scans can race on the same new name; the conflict clause
	// keeps the first insert and returns its row either way.
	err = s.pool.QueryRow(ctx, `
		INSERT INTO people (id, name, normalized_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (normalized_name) DO UPDATE SET name = people.name
		RETURNING id, name, created_at
	`, id, name, store.NormalizePersonName(name)).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		return store.Person{}, false, fmt.Errorf("insert person: %w", err)
	}
	return p, p.ID == id, nil
}

// ListPeople returns all known people ordered by name.
func (s *Store) ListPeople(ctx context.Context) ([]store.Person, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, created_at FROM people ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var out []store.Person
	for rows.Next() {
		var p store.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return out, nil
}
