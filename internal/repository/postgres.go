// Package repository provides PostgreSQL persistence for entries, users and
// the unknown-sender SMS queue.
package repository

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
