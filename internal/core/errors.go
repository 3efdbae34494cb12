package core

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mdobak/go-xerrors"
)

var (
	ErrDuplicateEmail    = xerrors.Message("Duplicate email")
	ErrDuplicateUsername = xerrors.Message("Duplicate username")
	ErrDuplicateSlug     = xerrors.Message("Duplicate slug")
	NoRecordFound        = xerrors.Message("No record found")
)

// uniqueViolation reports the violated constraint, or "" when err is not a
// unique violation. Postgres names the constraint; sqlite names the column.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}

	msg := err.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed: "); i >= 0 {
		return msg[i+len("UNIQUE constraint failed: "):], true
	}
	return "", false
}

func translateUserError(err error) error {
	constraint, ok := uniqueViolation(err)
	switch {
	case ok && (strings.Contains(constraint, "email")):
		return xerrors.New(ErrDuplicateEmail)
	case ok && (strings.Contains(constraint, "username")):
		return xerrors.New(ErrDuplicateUsername)
	default:
		return xerrors.New(err)
	}
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return xerrors.New(NoRecordFound)
	}
	return xerrors.New(err)
}
