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

// Package tessera exposes a generic CRUD service bound to the global
// database connection, built on the repository layer.
package tessera

import (
	"context"
	"sync"

	"github.com/uptrace/bun"

	"github.com/tessera-db/tessera/database"
	"github.com/tessera-db/tessera/repository"
	"github.com/tessera-db/tessera/types"
)

// Service is the application-facing surface of one persistence/domain model
// binding, backed by the global database connection.
type Service[PM any, DM any, PDM repository.Loadable[DM]] interface {
	// Create persists a new record from the attribute mapping.
	Create(ctx context.Context, attrs types.Attrs) (*DM, error)

	// Get returns a single record by its identifier.
	Get(ctx context.Context, id any) (*DM, error)

	// All returns every record.
	All(ctx context.Context) ([]*DM, error)

	// List returns records matching the filters with optional paging/order.
	List(ctx context.Context, filters types.Filters, opts *types.ListOptions) ([]*DM, error)

	// Page returns a paginated list of matching records.
	Page(ctx context.Context, filters types.Filters, req *types.PageRequest) (*types.Pagination[DM], error)

	// Count returns the number of matching records.
	Count(ctx context.Context, filters types.Filters) (int, error)

	// Exists reports whether the identifier resolves to a record.
	Exists(ctx context.Context, id any) (bool, error)

	// Update applies a partial change by identifier.
	Update(ctx context.Context, id any, attrs types.Attrs) (*DM, error)

	// Delete removes a record by its identifier.
	Delete(ctx context.Context, id any) error

	// Tx returns the same binding executing inside the given transaction.
	Tx(tx bun.Tx) repository.Repository[DM]
}

type baseServiceImpl[PM any, DM any, PDM repository.Loadable[DM]] struct {
	repo *repository.Crud[PM, DM, PDM]
	once sync.Once
}

// NewService returns a Service bound lazily to the global database
// connection. The binding's persistence contract is asserted on first use.
func NewService[PM any, DM any, PDM repository.Loadable[DM]]() Service[PM, DM, PDM] {
	return &baseServiceImpl[PM, DM, PDM]{}
}

func (s *baseServiceImpl[PM, DM, PDM]) baseRepo() *repository.Crud[PM, DM, PDM] {
	s.once.Do(func() {
		s.repo = repository.MustCrud[PM, DM, PDM](database.GetDB())
	})
	return s.repo
}

func (s *baseServiceImpl[PM, DM, PDM]) Create(ctx context.Context, attrs types.Attrs) (*DM, error) {
	return s.baseRepo().Create(ctx, attrs)
}

func (s *baseServiceImpl[PM, DM, PDM]) Get(ctx context.Context, id any) (*DM, error) {
	return s.baseRepo().Get(ctx, id)
}

func (s *baseServiceImpl[PM, DM, PDM]) All(ctx context.Context) ([]*DM, error) {
	return s.baseRepo().All(ctx)
}

func (s *baseServiceImpl[PM, DM, PDM]) List(ctx context.Context, filters types.Filters, opts *types.ListOptions) ([]*DM, error) {
	return s.baseRepo().List(ctx, filters, opts)
}

func (s *baseServiceImpl[PM, DM, PDM]) Page(ctx context.Context, filters types.Filters, req *types.PageRequest) (*types.Pagination[DM], error) {
	return s.baseRepo().Page(ctx, filters, req)
}

func (s *baseServiceImpl[PM, DM, PDM]) Count(ctx context.Context, filters types.Filters) (int, error) {
	return s.baseRepo().Count(ctx, filters)
}

func (s *baseServiceImpl[PM, DM, PDM]) Exists(ctx context.Context, id any) (bool, error) {
	return s.baseRepo().Exists(ctx, id)
}

func (s *baseServiceImpl[PM, DM, PDM]) Update(ctx context.Context, id any, attrs types.Attrs) (*DM, error) {
	return s.baseRepo().Update(ctx, id, attrs)
}

func (s *baseServiceImpl[PM, DM, PDM]) Delete(ctx context.Context, id any) error {
	return s.baseRepo().Delete(ctx, id)
}

func (s *baseServiceImpl[PM, DM, PDM]) Tx(tx bun.Tx) repository.Repository[DM] {
	return s.baseRepo().WithTx(tx)
}
