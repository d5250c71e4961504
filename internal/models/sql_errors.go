// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"errors"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// sqliteCode returns the extended result code of a sqlite error, or 0.
func sqliteCode(err error) int {
	var sqlErr *sqlite.Error
	if err != nil && errors.As(err, &sqlErr) {
		return sqlErr.Code()
	}
	return 0
}

// isCheckConstraintError reports a violated CHECK, e.g. a protection without
// any identifier.
func isCheckConstraintError(err error) bool {
	return sqliteCode(err) == sqlitelib.SQLITE_CONSTRAINT_CHECK
}

// isForeignKeyConstraintError reports a reference to a missing plan or run.
func isForeignKeyConstraintError(err error) bool {
	return sqliteCode(err) == sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY
}
