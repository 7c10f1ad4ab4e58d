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
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"

	"github.com/tessera-db/tessera/types"
)

// Crud is a repository bound to one (persistence model, domain model) pair.
// It is a stateless translation layer over the session it was built with:
// attribute mappings and domain models cross the boundary, persistence
// shapes stay inside, and nothing is retained between calls. Concurrent use
// is safe as long as the underlying session allows it; a bun.Tx expects one
// in-flight operation at a time.
type Crud[PM any, DM any, PDM Loadable[DM]] struct {
	session bun.IDB
	table   *schema.Table
}

// Entity returns the stable entity-type name of the binding (the table name).
func (c *Crud[PM, DM, PDM]) Entity() string { return c.table.Name }

// Session returns the storage session the repository executes against.
func (c *Crud[PM, DM, PDM]) Session() bun.IDB { return c.session }

// Dialect returns the SQL dialect of the bound session.
func (c *Crud[PM, DM, PDM]) Dialect() schema.Dialect { return c.session.Dialect() }

// WithTx returns a repository over the same binding that executes against
// the given transaction. Opening, committing, and rolling back the
// transaction stays with the caller.
func (c *Crud[PM, DM, PDM]) WithTx(tx bun.Tx) *Crud[PM, DM, PDM] {
	cc := *c
	cc.session = tx
	return &cc
}

// Create persists a new record from the given attribute mapping and returns
// the stored state as a domain model. The key set must be a subset of the
// persistence model's declared columns; unknown keys are an
// *UnknownAttrsError before any storage call. Constraint violations surface
// as *IntegrityConflictError.
func (c *Crud[PM, DM, PDM]) Create(ctx context.Context, attrs types.Attrs) (*DM, error) {
	if err := c.validateAttrs(attrs); err != nil {
		return nil, err
	}
	pm := new(PM)
	if err := c.applyAttrs(pm, attrs); err != nil {
		return nil, err
	}

	q := c.session.NewInsert().Model(pm)
	returning := c.session.Dialect().Features().Has(feature.InsertReturning)
	if returning {
		q = q.Returning("*")
	}
	if _, err := q.Exec(ctx); err != nil {
		return nil, translateWriteError(c.Entity(), err)
	}
	if !returning {
		// MySQL has no RETURNING; read the row back so column defaults are
		// reflected. Bun fills the autoincrement key after the insert.
		id := c.pk().Value(reflect.ValueOf(pm).Elem()).Interface()
		return c.Get(ctx, id)
	}
	return c.load(pm)
}

// Get returns the domain model for the given identifier.
func (c *Crud[PM, DM, PDM]) Get(ctx context.Context, id any) (*DM, error) {
	pm := new(PM)
	err := c.session.NewSelect().Model(pm).
		Where("? = ?", bun.Ident(c.pk().Name), id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: c.Entity(), ID: id}
		}
		return nil, err
	}
	return c.load(pm)
}

// All returns every record of the bound entity.
func (c *Crud[PM, DM, PDM]) All(ctx context.Context) ([]*DM, error) {
	return c.List(ctx, nil, nil)
}

// List returns the records matching all filters conjunctively. Scalar filter
// values mean equality, slice values mean membership. A filter or order
// column that is not declared on the persistence model fails before the
// query runs. Zero matches return an empty slice, not an error.
func (c *Crud[PM, DM, PDM]) List(ctx context.Context, filters types.Filters, opts *types.ListOptions) ([]*DM, error) {
	var pms []PM
	q := c.session.NewSelect().Model(&pms)
	q, err := c.applyFilters(q, filters)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		for _, entry := range opts.Order {
			col, dir, err := c.orderSpec(entry)
			if err != nil {
				return nil, err
			}
			q = q.OrderExpr("? ?", bun.Ident(col), bun.Safe(dir))
		}
		if opts.Offset > 0 {
			q = q.Offset(opts.Offset)
		}
		if opts.Limit > 0 {
			q = q.Limit(opts.Limit)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]*DM, 0, len(pms))
	for i := range pms {
		dm, err := c.load(&pms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, dm)
	}
	return out, nil
}

// Page returns one page of matching records along with the total match count.
func (c *Crud[PM, DM, PDM]) Page(ctx context.Context, filters types.Filters, req *types.PageRequest) (*types.Pagination[DM], error) {
	if req == nil {
		req = types.NewPageRequest(1, 10)
	}
	page := types.NewPagination[DM](req.Page(), req.PageSize())
	total, err := c.Count(ctx, filters)
	if err != nil || total == 0 {
		return page, err
	}
	items, err := c.List(ctx, filters, req.Options())
	if err != nil {
		return nil, err
	}
	page.Total = total
	page.Items = items
	return page, nil
}

// Count returns the number of records matching the filters.
func (c *Crud[PM, DM, PDM]) Count(ctx context.Context, filters types.Filters) (int, error) {
	q := c.session.NewSelect().Model((*PM)(nil))
	q, err := c.applyFilters(q, filters)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

// Exists reports whether a record with the given identifier exists.
func (c *Crud[PM, DM, PDM]) Exists(ctx context.Context, id any) (bool, error) {
	n, err := c.session.NewSelect().Model((*PM)(nil)).
		Where("? = ?", bun.Ident(c.pk().Name), id).
		Count(ctx)
	return n > 0, err
}

// Update applies a partial change to the identified record and returns the
// updated state read back from storage. The attribute keys follow the same
// subset-of-declared-columns precondition as Create.
func (c *Crud[PM, DM, PDM]) Update(ctx context.Context, id any, attrs types.Attrs) (*DM, error) {
	if err := c.validateAttrs(attrs); err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		// Nothing to change; still surfaces NotFound for absent identifiers.
		return c.Get(ctx, id)
	}

	q := c.session.NewUpdate().Model((*PM)(nil)).
		Where("? = ?", bun.Ident(c.pk().Name), id)
	cols := make([]string, 0, len(attrs))
	for col := range attrs {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		q = q.Set("? = ?", bun.Ident(col), attrs[col])
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, translateWriteError(c.Entity(), err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		// MySQL reports zero affected rows when the new values equal the old
		// ones, so zero alone does not prove absence.
		ok, err := c.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &NotFoundError{Entity: c.Entity(), ID: id}
		}
	}
	return c.Get(ctx, id)
}

// Delete removes the identified record. Deleting an identifier that does not
// resolve to a row is a *NotFoundError so callers can tell "deleted" from
// "there was nothing to delete".
func (c *Crud[PM, DM, PDM]) Delete(ctx context.Context, id any) error {
	res, err := c.session.NewDelete().Model((*PM)(nil)).
		Where("? = ?", bun.Ident(c.pk().Name), id).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &NotFoundError{Entity: c.Entity(), ID: id}
	}
	return nil
}

func (c *Crud[PM, DM, PDM]) pk() *schema.Field { return c.table.PKs[0] }

func (c *Crud[PM, DM, PDM]) validateAttrs(attrs types.Attrs) error {
	var unknown []string
	for col := range attrs {
		if _, ok := c.table.FieldMap[col]; !ok {
			unknown = append(unknown, col)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &UnknownAttrsError{Entity: c.Entity(), Attrs: unknown}
	}
	return nil
}

func (c *Crud[PM, DM, PDM]) applyAttrs(pm *PM, attrs types.Attrs) error {
	rv := reflect.ValueOf(pm).Elem()
	for col, v := range attrs {
		fv := c.table.FieldMap[col].Value(rv)
		if v == nil {
			fv.Set(reflect.Zero(fv.Type()))
			continue
		}
		val := reflect.ValueOf(v)
		switch {
		case val.Type().AssignableTo(fv.Type()):
			fv.Set(val)
		case convertible(val.Type(), fv.Type()):
			fv.Set(val.Convert(fv.Type()))
		default:
			return fmt.Errorf("attribute %q: cannot assign %T to column of type %s", col, v, fv.Type())
		}
	}
	return nil
}

// convertible allows lossless-ish reflect conversions between attribute
// values and column types while refusing numeric<->string conversions, which
// Go defines but which would corrupt data here.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	return numericKind(from.Kind()) == numericKind(to.Kind())
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (c *Crud[PM, DM, PDM]) dumpModel(pm *PM) types.Attrs {
	rv := reflect.ValueOf(pm).Elem()
	attrs := make(types.Attrs, len(c.table.Fields))
	for _, f := range c.table.Fields {
		attrs[f.Name] = f.Value(rv).Interface()
	}
	return attrs
}

func (c *Crud[PM, DM, PDM]) load(pm *PM) (*DM, error) {
	dm := PDM(new(DM))
	if err := dm.LoadAttrs(c.dumpModel(pm)); err != nil {
		return nil, err
	}
	return (*DM)(dm), nil
}

func (c *Crud[PM, DM, PDM]) applyFilters(q *bun.SelectQuery, filters types.Filters) (*bun.SelectQuery, error) {
	if len(filters) == 0 {
		return q, nil
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if _, ok := c.table.FieldMap[col]; !ok {
			return nil, fmt.Errorf("unknown filter column %q for %s", col, c.Entity())
		}
		v := filters[col]
		if types.IsMembership(v) {
			if reflect.ValueOf(v).Len() == 0 {
				// Membership of the empty set matches nothing.
				q = q.Where("1 = 0")
				continue
			}
			q = q.Where("? IN (?)", bun.Ident(col), bun.In(v))
			continue
		}
		q = q.Where("? = ?", bun.Ident(col), v)
	}
	return q, nil
}

func (c *Crud[PM, DM, PDM]) orderSpec(entry string) (string, string, error) {
	parts := strings.Fields(strings.TrimSpace(entry))
	if len(parts) == 0 || len(parts) > 2 {
		return "", "", fmt.Errorf("malformed order entry %q", entry)
	}
	col := parts[0]
	if _, ok := c.table.FieldMap[col]; !ok {
		return "", "", fmt.Errorf("unknown order column %q for %s", col, c.Entity())
	}
	dir := "ASC"
	if len(parts) == 2 {
		switch d := strings.ToUpper(parts[1]); d {
		case "ASC", "DESC":
			dir = d
		default:
			return "", "", fmt.Errorf("malformed order direction %q", parts[1])
		}
	}
	return col, dir, nil
}
