package registration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository persists registrations. Registry writes through to it on every
// change and reads it back in Load.
type Repository interface {
	// Save inserts or replaces the registration at e.Location. Any other
	// row with the same endpoint name is replaced.
	Save(ctx context.Context, e *Entry) error

	// Delete removes the registration at location. Deleting a missing
	// location is not an error.
	Delete(ctx context.Context, location string) error

	// List returns all stored registrations ordered by endpoint name.
	List(ctx context.Context) ([]Entry, error)
}

// SQLiteRepository implements Repository using the registrations table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts or replaces a registration.
func (r *SQLiteRepository) Save(ctx context.Context, e *Entry) error {
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO registrations (
			location, endpoint, address, port, lifetime, version, binding,
			sms_number, links, attributes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		e.Location, e.Endpoint, e.Address, e.Port, e.Lifetime, e.Version, e.Binding,
		e.SMSNumber, e.Links, string(attrs),
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving registration %s: %w", e.Location, err)
	}
	return nil
}

// Delete removes a registration.
func (r *SQLiteRepository) Delete(ctx context.Context, location string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE location = ?`, location); err != nil {
		return fmt.Errorf("deleting registration %s: %w", location, err)
	}
	return nil
}

// List returns all registrations ordered by endpoint name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT location, endpoint, address, port, lifetime, version, binding,
			sms_number, links, attributes, created_at, updated_at
		FROM registrations
		ORDER BY endpoint`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying registrations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registrations: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                    Entry
		attrs                string
		createdAt, updatedAt string
	)
	err := rows.Scan(
		&e.Location, &e.Endpoint, &e.Address, &e.Port, &e.Lifetime, &e.Version, &e.Binding,
		&e.SMSNumber, &e.Links, &attrs, &createdAt, &updatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scanning registration: %w", err)
	}

	if attrs != "" && attrs != "null" {
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return Entry{}, fmt.Errorf("parsing attributes of %s: %w", e.Location, err)
		}
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Entry{}, fmt.Errorf("parsing created_at of %s: %w", e.Location, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Entry{}, fmt.Errorf("parsing updated_at of %s: %w", e.Location, err)
	}
	return e, nil
}
