package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/errors"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrUniqueConstraint is returned when an insert reuses an existing id.
var ErrUniqueConstraint = &errors.MuseError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const resultColumns = `id, poem, portrait_url, portrait_style, name, designation,
			company, reference_count, created_at, updated_at`

const summaryColumns = `id, poem, portrait_style, name, designation,
			company, reference_count, created_at, updated_at`

// Insert stores a new result. It never overwrites an existing id.
func Insert(ctx context.Context, q Querier, r *creation.Result) error {
	query := `
		INSERT INTO results (` + resultColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		r.ID, r.Poem, r.PortraitURL, string(r.PortraitStyle), r.Name, r.Designation,
		r.Company, r.ReferenceCount, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports both "UNIQUE constraint failed" and "PRIMARY KEY" violations this way
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a result by its ULID.
func GetByID(ctx context.Context, q Querier, id string) (*creation.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE id = ?`

	r, err := scanResult(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return r, nil
}

// Exists reports whether a result with the given id is stored.
func Exists(ctx context.Context, q Querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM results WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// UpdateByID applies patch to the stored result with the given id.
// The read that locates the record and the write happen in one transaction.
// A missing id returns NOT_FOUND and never creates a record.
func UpdateByID(ctx context.Context, db *sql.DB, id string, patch creation.Patch) (*creation.Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(*current, time.Now().Unix())

	query := `
		UPDATE results
		SET poem = ?, portrait_url = ?, portrait_style = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		updated.Poem, updated.PortraitURL, string(updated.PortraitStyle), updated.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return nil, errors.NewNotFound(id)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &updated, nil
}

// ReplaceByID overwrites every stored field of an existing result. Used by import.
func ReplaceByID(ctx context.Context, q Querier, r *creation.Result) error {
	query := `
		UPDATE results
		SET poem = ?, portrait_url = ?, portrait_style = ?, name = ?, designation = ?,
			company = ?, reference_count = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		r.Poem, r.PortraitURL, string(r.PortraitStyle), r.Name, r.Designation,
		r.Company, r.ReferenceCount, r.CreatedAt, r.UpdatedAt,
		r.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(r.ID)
	}
	return nil
}

// ListRecent returns result summaries, newest first, with the total count.
// Ties on created_at are broken by id (ULIDs sort by mint time).
func ListRecent(ctx context.Context, q Querier, limit, offset int) ([]creation.Summary, int, error) {
	total, err := Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + summaryColumns + `
		FROM results
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var summaries []creation.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return summaries, total, nil
}

// Count returns the number of stored results.
func Count(ctx context.Context, q Querier) (int, error) {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&total); err != nil {
		return 0, errors.NewInternal(err)
	}
	return total, nil
}

// GetLatest returns the most recently created result, or nil if none exist.
func GetLatest(ctx context.Context, q Querier) (*creation.Result, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM results
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	r, err := scanResult(q.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// StreamForExport returns rows for every result, oldest first.
// Caller must close the rows and use ScanResultFromRows.
func StreamForExport(ctx context.Context, q Querier) (*sql.Rows, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM results
		ORDER BY created_at ASC, id ASC
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanResultFromRows scans the current row of a StreamForExport cursor.
func ScanResultFromRows(rows *sql.Rows) (*creation.Result, error) {
	return scanResult(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanResult scans a single row into a Result.
func scanResult(row scanner) (*creation.Result, error) {
	var (
		r     creation.Result
		style string
	)
	err := row.Scan(
		&r.ID, &r.Poem, &r.PortraitURL, &style, &r.Name, &r.Designation,
		&r.Company, &r.ReferenceCount, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.PortraitStyle = creation.ParseStyle(style)
	return &r, nil
}

// scanSummary scans a summary row, shortening the poem to its first line.
func scanSummary(row scanner) (*creation.Summary, error) {
	var (
		s     creation.Summary
		poem  string
		style string
	)
	err := row.Scan(
		&s.ID, &poem, &style, &s.Name, &s.Designation,
		&s.Company, &s.ReferenceCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.PoemPreview = creation.FirstLine(poem)
	s.PortraitStyle = creation.ParseStyle(style)
	return &s, nil
}
