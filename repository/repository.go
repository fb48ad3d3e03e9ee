// Package repository holds the Postgres access code. Rule chunks live in a
// pgvector column and are searched by cosine distance.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup by ID matches no row
var ErrNotFound = errors.New("record not found")

// notFound maps pgx.ErrNoRows to ErrNotFound
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
