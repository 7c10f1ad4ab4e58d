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

package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tessera-db/tessera/repository"
	"github.com/tessera-db/tessera/types"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Email  string `bun:"email,notnull,unique"`
	Status string `bun:"status,nullzero,notnull,default:'active'"`
	Region string `bun:"region,notnull"`
	Age    int64  `bun:"age"`
}

type User struct {
	ID     int64  `attr:"id"`
	Email  string `attr:"email"`
	Status string `attr:"status"`
	Region string `attr:"region"`
	Age    int64  `attr:"age"`
}

func (u *User) Identifier() any { return u.ID }

func (u *User) DumpAttrs() types.Attrs {
	return types.Attrs{
		"id":     u.ID,
		"email":  u.Email,
		"status": u.Status,
		"region": u.Region,
		"age":    u.Age,
	}
}

func (u *User) LoadAttrs(attrs types.Attrs) error {
	if err := types.DecodeAttrs(attrs, u); err != nil {
		return err
	}
	if u.Email == "" {
		return fmt.Errorf("user: email is required")
	}
	return nil
}

type deviceRow struct {
	bun.BaseModel `bun:"table:devices,alias:d"`

	ID   uuid.UUID `bun:"id,pk,type:uuid"`
	Name string    `bun:"name,notnull"`
}

type Device struct {
	ID   uuid.UUID `attr:"id"`
	Name string    `attr:"name"`
}

func (d *Device) Identifier() any { return d.ID }

func (d *Device) DumpAttrs() types.Attrs {
	return types.Attrs{"id": d.ID, "name": d.Name}
}

func (d *Device) LoadAttrs(attrs types.Attrs) error {
	return types.DecodeAttrs(attrs, d)
}

var _ repository.Repository[User] = (*repository.Crud[userRow, User, *User])(nil)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*userRow)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*deviceRow)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)
	return db
}

func newUserCrud(t *testing.T) *repository.Crud[userRow, User, *User] {
	t.Helper()
	crud, err := repository.NewCrud[userRow, User, *User](newTestDB(t))
	require.NoError(t, err)
	return crud
}

func userAttrs(email string) types.Attrs {
	return types.Attrs{
		"email":  email,
		"status": "active",
		"region": "us",
		"age":    int64(30),
	}
}

func TestFactoryAssertsPersistenceContract(t *testing.T) {
	db := newTestDB(t)

	t.Run("non-struct model", func(t *testing.T) {
		_, err := repository.NewCrud[int, User, *User](db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be a struct")
	})

	t.Run("missing primary key", func(t *testing.T) {
		type anonRow struct {
			bun.BaseModel `bun:"table:anon"`
			Name          string `bun:"name"`
		}
		_, err := repository.NewCrud[anonRow, User, *User](db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary key")
	})

	t.Run("nil session", func(t *testing.T) {
		_, err := repository.NewCrud[userRow, User, *User](nil)
		require.Error(t, err)
	})

	t.Run("valid binding", func(t *testing.T) {
		crud, err := repository.NewCrud[userRow, User, *User](db)
		require.NoError(t, err)
		assert.Equal(t, "users", crud.Entity())
	})
}

func TestCreateRoundTrip(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	attrs := userAttrs("alice@example.com")
	created, err := crud.Create(ctx, attrs)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	// The dumped state restricted to the supplied keys equals the input.
	dump := created.DumpAttrs()
	for k, v := range attrs {
		assert.Equal(t, v, dump[k], "attribute %q", k)
	}

	got, err := crud.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.DumpAttrs(), got.DumpAttrs())
	assert.Equal(t, created.Identifier(), got.Identifier())
}

func TestCreateAppliesColumnDefaults(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	created, err := crud.Create(ctx, types.Attrs{
		"email":  "bob@example.com",
		"region": "eu",
	})
	require.NoError(t, err)
	assert.Equal(t, "active", created.Status)
}

func TestCreateRejectsUnknownAttrs(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	attrs := userAttrs("carol@example.com")
	attrs["nickname"] = "cc"
	attrs["shoe_size"] = int64(43)

	_, err := crud.Create(ctx, attrs)
	require.Error(t, err)

	var unknownErr *repository.UnknownAttrsError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "users", unknownErr.Entity)
	assert.Equal(t, []string{"nickname", "shoe_size"}, unknownErr.Attrs)
	assert.ErrorIs(t, err, repository.ErrRepository)

	// No write happened.
	n, err := crud.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateIntegrityConflict(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	first, err := crud.Create(ctx, userAttrs("dup@example.com"))
	require.NoError(t, err)

	_, err = crud.Create(ctx, userAttrs("dup@example.com"))
	require.Error(t, err)

	var conflict *repository.IntegrityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "users", conflict.Entity)
	assert.Contains(t, conflict.Fields, "email")
	assert.ErrorIs(t, err, repository.ErrRepository)

	// The first record is untouched.
	got, err := crud.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.DumpAttrs(), got.DumpAttrs())
}

func TestAbsentIdentifierIsNotFound(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	var notFound *repository.NotFoundError

	_, err := crud.Get(ctx, int64(404))
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "users", notFound.Entity)
	assert.ErrorIs(t, err, repository.ErrRepository)

	_, err = crud.Update(ctx, int64(404), types.Attrs{"region": "eu"})
	require.ErrorAs(t, err, &notFound)

	err = crud.Delete(ctx, int64(404))
	require.ErrorAs(t, err, &notFound)
}

func TestDeleteTwiceFailsSecondTime(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	created, err := crud.Create(ctx, userAttrs("gone@example.com"))
	require.NoError(t, err)

	require.NoError(t, crud.Delete(ctx, created.ID))

	err = crud.Delete(ctx, created.ID)
	var notFound *repository.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func seedUsers(t *testing.T, crud *repository.Crud[userRow, User, *User]) {
	t.Helper()
	ctx := context.Background()
	rows := []types.Attrs{
		{"email": "a@example.com", "status": "active", "region": "us", "age": int64(31)},
		{"email": "b@example.com", "status": "active", "region": "eu", "age": int64(42)},
		{"email": "c@example.com", "status": "active", "region": "ap", "age": int64(23)},
		{"email": "d@example.com", "status": "disabled", "region": "us", "age": int64(54)},
		{"email": "e@example.com", "status": "disabled", "region": "eu", "age": int64(65)},
	}
	for _, attrs := range rows {
		_, err := crud.Create(ctx, attrs)
		require.NoError(t, err)
	}
}

func TestListFilterConjunction(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	out, err := crud.List(ctx, types.Filters{
		"status": "active",
		"region": []string{"us", "eu"},
	}, nil)
	require.NoError(t, err)

	emails := make([]string, 0, len(out))
	for _, u := range out {
		emails = append(emails, u.Email)
	}
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, emails)
}

func TestListEmptyFiltersReturnsAll(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	out, err := crud.List(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, out, 5)

	all, err := crud.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestListZeroMatchesIsEmptyNotError(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	out, err := crud.List(ctx, types.Filters{"region": "mars"}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListEmptyMembershipMatchesNothing(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	out, err := crud.List(ctx, types.Filters{"region": []string{}}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListRejectsUnknownFilterColumn(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	_, err := crud.List(ctx, types.Filters{"citizenship": "us"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filter column")
}

func TestListOrderingAndPagination(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	out, err := crud.List(ctx, nil, &types.ListOptions{
		Order:  []string{"age DESC"},
		Offset: 1,
		Limit:  2,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(54), out[0].Age)
	assert.Equal(t, int64(42), out[1].Age)

	_, err = crud.List(ctx, nil, &types.ListOptions{Order: []string{"age SIDEWAYS"}})
	require.Error(t, err)

	_, err = crud.List(ctx, nil, &types.ListOptions{Order: []string{"karma"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown order column")
}

func TestPage(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	page, err := crud.Page(ctx, types.Filters{"status": "active"}, types.NewPageRequest(1, 2, "age"))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(23), page.Items[0].Age)
	assert.Equal(t, int64(31), page.Items[1].Age)

	page, err = crud.Page(ctx, types.Filters{"status": "missing"}, types.NewPageRequest(1, 2))
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestUpdate(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	created, err := crud.Create(ctx, userAttrs("frank@example.com"))
	require.NoError(t, err)

	updated, err := crud.Update(ctx, created.ID, types.Attrs{
		"region": "eu",
		"age":    int64(31),
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "eu", updated.Region)
	assert.Equal(t, int64(31), updated.Age)
	assert.Equal(t, "frank@example.com", updated.Email)

	// The same values again still succeed.
	again, err := crud.Update(ctx, created.ID, types.Attrs{"region": "eu"})
	require.NoError(t, err)
	assert.Equal(t, "eu", again.Region)
}

func TestUpdateRejectsUnknownAttrs(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	created, err := crud.Create(ctx, userAttrs("gina@example.com"))
	require.NoError(t, err)

	_, err = crud.Update(ctx, created.ID, types.Attrs{"favourite_color": "teal"})
	var unknownErr *repository.UnknownAttrsError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, []string{"favourite_color"}, unknownErr.Attrs)

	got, err := crud.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.DumpAttrs(), got.DumpAttrs())
}

func TestUpdateIntegrityConflict(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	_, err := crud.Create(ctx, userAttrs("taken@example.com"))
	require.NoError(t, err)
	second, err := crud.Create(ctx, userAttrs("free@example.com"))
	require.NoError(t, err)

	_, err = crud.Update(ctx, second.ID, types.Attrs{"email": "taken@example.com"})
	var conflict *repository.IntegrityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Fields, "email")
}

func TestUpdateEmptyAttrsReadsBack(t *testing.T) {
	crud := newUserCrud(t)
	ctx := context.Background()

	created, err := crud.Create(ctx, userAttrs("henry@example.com"))
	require.NoError(t, err)

	got, err := crud.Update(ctx, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, created.DumpAttrs(), got.DumpAttrs())

	_, err = crud.Update(ctx, int64(404), nil)
	var notFound *repository.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestExistsAndCount(t *testing.T) {
	crud := newUserCrud(t)
	seedUsers(t, crud)
	ctx := context.Background()

	n, err := crud.Count(ctx, types.Filters{"status": "disabled"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := crud.Exists(ctx, int64(1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = crud.Exists(ctx, int64(404))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTxRollbackLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	crud, err := repository.NewCrud[userRow, User, *User](db)
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	txCrud := crud.WithTx(tx)
	_, err = txCrud.Create(ctx, userAttrs("phantom@example.com"))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	n, err := crud.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUUIDIdentifierBinding(t *testing.T) {
	db := newTestDB(t)
	crud, err := repository.NewCrud[deviceRow, Device, *Device](db)
	require.NoError(t, err)
	ctx := context.Background()

	id := uuid.New()
	created, err := crud.Create(ctx, types.Attrs{"id": id, "name": "sensor-1"})
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)

	got, err := crud.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, created.DumpAttrs(), got.DumpAttrs())

	_, err = crud.Get(ctx, uuid.New())
	var notFound *repository.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDomainValidationErrorsPassThrough(t *testing.T) {
	db := newTestDB(t)
	crud, err := repository.NewCrud[userRow, User, *User](db)
	require.NoError(t, err)
	ctx := context.Background()

	// A row the domain model refuses to load: present in storage, invalid
	// for the application.
	_, err = db.NewInsert().Model(&userRow{Email: "", Region: "us", Status: "active"}).Exec(ctx)
	require.NoError(t, err)

	users, err := crud.All(ctx)
	require.Len(t, users, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
	assert.NotErrorIs(t, err, repository.ErrRepository)
}

func TestRepositoryIsStatelessAcrossBindings(t *testing.T) {
	db := newTestDB(t)
	users, err := repository.NewCrud[userRow, User, *User](db)
	require.NoError(t, err)
	devices, err := repository.NewCrud[deviceRow, Device, *Device](db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = users.Create(ctx, userAttrs("solo@example.com"))
	require.NoError(t, err)
	_, err = devices.Create(ctx, types.Attrs{"id": uuid.New(), "name": "sensor-2"})
	require.NoError(t, err)

	nu, err := users.Count(ctx, nil)
	require.NoError(t, err)
	nd, err := devices.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, nu)
	assert.Equal(t, 1, nd)
}
