package storage

import (
	"fmt"
	"productservice/internal/models"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// productColumns is the column order shared by every SQL backend.
const productColumns = "id, name, title, description, price, category, image, created_at, updated_at"

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// sqliteTimeLayout has a fixed width so text order matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(value string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t, nil
}

// scanSQLiteProduct reads one row selected with productColumns.
func scanSQLiteProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Title, &p.Description, &p.Price,
		&p.Category, &p.Image, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func toPgTimestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t.UTC(), Valid: !t.IsZero()}
}

// scanPgProduct reads one row selected with productColumns.
func scanPgProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&p.ID, &p.Name, &p.Title, &p.Description, &p.Price,
		&p.Category, &p.Image, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}
