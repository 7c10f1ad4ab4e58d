/*
 * Copyright 2025 tessera-db.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// SQLError is a driver-independent classification of engine failures.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoColumnErr
	NoTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

// ClassifySQLError reports whether err originates from the SQL engine and,
// if so, which class of failure it is. Typed driver errors (MySQL error
// numbers, Postgres SQLSTATEs) are checked first; SQLite and drivers that
// only expose text fall back to message matching.
func ClassifySQLError(err error) (bool, SQLError) {
	if err == nil {
		return false, UnknownErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1054:
			return true, NoColumnErr
		case 1146:
			return true, NoTableErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1265:
			return true, DataTruncatedErr
		default:
			return true, UnknownErr
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42703":
			return true, NoColumnErr
		case "42P01":
			return true, NoTableErr
		case "23505":
			return true, DuplicateKeyErr
		case "23502":
			return true, NotNullViolationErr
		case "23503":
			return true, ForeignKeyViolationErr
		case "23514":
			return true, CheckConstraintViolationErr
		case "22001":
			return true, DataTruncatedErr
		case "42804":
			return true, InvalidTypeCastErr
		default:
			return true, UnknownErr
		}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "sqlstate 42703"),
		strings.Contains(s, "undefined column"),
		strings.Contains(s, "no such column"):
		return true, NoColumnErr
	case strings.Contains(s, "sqlstate 42p01"),
		strings.Contains(s, "undefined table"),
		strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "duplicate key value"),
		strings.Contains(s, "unique constraint failed"),
		strings.Contains(s, "sqlstate 23505"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not-null constraint"),
		strings.Contains(s, "not null constraint failed"),
		strings.Contains(s, "sqlstate 23502"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key violation"),
		strings.Contains(s, "foreign key constraint failed"),
		strings.Contains(s, "sqlstate 23503"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint"),
		strings.Contains(s, "sqlstate 23514"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "string data right truncation"),
		strings.Contains(s, "data truncated"),
		strings.Contains(s, "sqlstate 22001"):
		return true, DataTruncatedErr
	case strings.Contains(s, "datatype mismatch"),
		strings.Contains(s, "sqlstate 42804"):
		return true, InvalidTypeCastErr
	}
	return false, UnknownErr
}

var (
	// MySQL 1062: Duplicate entry 'x' for key 'users.email' (8.0 prefixes
	// the table, 5.7 does not).
	mysqlDupKeyRE = regexp.MustCompile(`for key '([^']+)'`)
	// SQLite: UNIQUE constraint failed: users.email, users.region
	sqliteConstraintRE = regexp.MustCompile(`(?i)(?:unique|not null|check) constraint failed: ([\w., ]+)`)
	// Postgres error detail: Key (email)=(x) already exists.
	pgKeyDetailRE = regexp.MustCompile(`Key \(([^)]+)\)`)
)

// ConstraintColumns extracts the column names behind a constraint violation
// when the engine signal carries them. It returns nil when nothing can be
// derived; callers must treat the result as best effort.
func ConstraintColumns(err error) []string {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Column != "" {
			return []string{pqErr.Column}
		}
		if m := pgKeyDetailRE.FindStringSubmatch(pqErr.Detail); m != nil {
			return splitColumnList(m[1])
		}
		if pqErr.Constraint != "" {
			// Only the constraint name is available; pass it through rather
			// than guessing columns from naming conventions.
			return []string{pqErr.Constraint}
		}
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if m := mysqlDupKeyRE.FindStringSubmatch(mysqlErr.Message); m != nil {
			key := m[1]
			if i := strings.LastIndex(key, "."); i >= 0 {
				key = key[i+1:]
			}
			return []string{key}
		}
		return nil
	}

	if m := sqliteConstraintRE.FindStringSubmatch(err.Error()); m != nil {
		return splitColumnList(m[1])
	}
	return nil
}

func splitColumnList(s string) []string {
	parts := strings.Split(s, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if i := strings.LastIndex(p, "."); i >= 0 {
			p = p[i+1:]
		}
		if p != "" {
			cols = append(cols, p)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	return cols
}
