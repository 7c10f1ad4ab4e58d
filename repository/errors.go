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

package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tessera-db/tessera/database"
)

// ErrRepository is the root of the error taxonomy. It is never returned
// directly; every repository error unwraps to it, so
// errors.Is(err, ErrRepository) catches the whole taxonomy while errors.As
// targets a single kind.
var ErrRepository = errors.New("repository failure")

// NotFoundError reports that the targeted identifier has no corresponding
// record. Absence on a single-record operation is always an error, never a
// nil result or a silent no-op.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with identifier %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrRepository }

// IntegrityConflictError reports that the storage engine rejected a write
// because of a uniqueness or referential constraint. Fields holds the
// offending column names when the engine signal allows deriving them.
type IntegrityConflictError struct {
	Entity string
	Fields []string
	Err    error
}

func (e *IntegrityConflictError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("integrity conflict on %s (%s): %v",
			e.Entity, strings.Join(e.Fields, ", "), e.Err)
	}
	return fmt.Sprintf("integrity conflict on %s: %v", e.Entity, e.Err)
}

func (e *IntegrityConflictError) Unwrap() []error { return []error{ErrRepository, e.Err} }

// UnknownAttrsError reports attribute keys that are not declared on the
// persistence model. This is a programmer error and is detected before any
// storage round trip.
type UnknownAttrsError struct {
	Entity string
	Attrs  []string
}

func (e *UnknownAttrsError) Error() string {
	return fmt.Sprintf("unknown attributes for %s: %s", e.Entity, strings.Join(e.Attrs, ", "))
}

func (e *UnknownAttrsError) Unwrap() error { return ErrRepository }

// translateWriteError maps engine-level constraint violations onto the
// taxonomy. Anything else passes through untouched so unexpected failures
// keep their full diagnostic context.
func translateWriteError(entity string, err error) error {
	if err == nil {
		return nil
	}
	if ok, kind := database.ClassifySQLError(err); ok {
		switch kind {
		case database.DuplicateKeyErr, database.ForeignKeyViolationErr:
			return &IntegrityConflictError{
				Entity: entity,
				Fields: database.ConstraintColumns(err),
				Err:    err,
			}
		}
	}
	return err
}
