package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// classifyDBError maps a raw driver error onto the error taxonomy:
// NotFound for sql.ErrNoRows, IntegrityError for unique/FK violations,
// ConnectionError for a dead connection, UpdateError for everything else.
func classifyDBError(dialect Dialect, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.NotFound, "entity not found", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23": // integrity_constraint_violation
			return errs.Wrap(errs.IntegrityError, "integrity constraint violated", err)
		case "08": // connection_exception
			return errs.Wrap(errs.ConnectionError, "database connection failed", err)
		}
		return errs.Wrap(errs.UpdateError, "database write failed", err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return errs.Wrap(errs.IntegrityError, "integrity constraint violated", err)
		case sqlite3.ErrCantOpen, sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errs.Wrap(errs.ConnectionError, "database connection failed", err)
		}
		return errs.Wrap(errs.UpdateError, "database write failed", err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") {
		return errs.Wrap(errs.ConnectionError, "database connection failed", err)
	}
	return errs.Wrap(errs.UpdateError, "database write failed", err)
}
