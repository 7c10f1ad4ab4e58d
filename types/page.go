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

package types

// ListOptions carries optional pagination and ordering for list queries.
// Zero values mean "no offset", "no limit", and "engine order" respectively.
type ListOptions struct {
	Offset int
	Limit  int
	// Order entries are "column" or "column DESC"; columns must be declared
	// on the persistence model.
	Order []string
}

// PageRequest describes page-numbered pagination with optional ordering.
type PageRequest struct {
	page     int
	pageSize int
	orders   []string // "id", "name DESC"
}

func (p *PageRequest) PageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}

func (p *PageRequest) Page() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) Offset() int {
	return (p.Page() - 1) * p.PageSize()
}

func (p *PageRequest) Orders() []string {
	return p.orders
}

// Options converts the page request into equivalent list options.
func (p *PageRequest) Options() *ListOptions {
	return &ListOptions{Offset: p.Offset(), Limit: p.PageSize(), Order: p.Orders()}
}

// NewPageRequest constructs a PageRequest with optional ordering.
func NewPageRequest(page, pageSize int, orders ...string) *PageRequest {
	return &PageRequest{page, pageSize, orders}
}

// Pagination holds one page of items along with pagination metadata.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

// NewPagination constructs an empty pagination container.
func NewPagination[T any](page, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]*T, 0)}
}
