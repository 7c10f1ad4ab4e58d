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
	"context"

	"github.com/tessera-db/tessera/types"
)

// Reader defines the read side of a repository binding. All results are
// domain model instances; persistence shapes never cross this boundary.
type Reader[DM any] interface {
	// Get returns the domain model for the given identifier. Absence is a
	// *NotFoundError, never a nil result.
	Get(ctx context.Context, id any) (*DM, error)

	// All returns every record of the bound entity.
	All(ctx context.Context) ([]*DM, error)

	// List returns the records matching all filters conjunctively, with
	// optional offset/limit and ordering. Zero matches yield an empty slice.
	List(ctx context.Context, filters types.Filters, opts *types.ListOptions) ([]*DM, error)

	// Page returns one page of matching records plus the total match count.
	Page(ctx context.Context, filters types.Filters, req *types.PageRequest) (*types.Pagination[DM], error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, filters types.Filters) (int, error)

	// Exists reports whether a record with the given identifier exists.
	Exists(ctx context.Context, id any) (bool, error)
}

// Writer defines the write side of a repository binding.
type Writer[DM any] interface {
	// Create persists a new record from the given attributes and returns the
	// stored state as a domain model.
	Create(ctx context.Context, attrs types.Attrs) (*DM, error)

	// Update applies a partial change to the identified record and returns
	// the updated state read back from storage.
	Update(ctx context.Context, id any, attrs types.Attrs) (*DM, error)

	// Delete removes the identified record. Deleting an absent identifier is
	// a *NotFoundError, never a silent no-op.
	Delete(ctx context.Context, id any) error
}

// Repository is the full operation surface of one (persistence model,
// domain model) binding.
type Repository[DM any] interface {
	Reader[DM]
	Writer[DM]
}
