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
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
)

// NewCrud binds a persistence model type and a domain model type into a
// ready-to-use repository over the given session. The session may be a
// *bun.DB or an open bun.Tx; the repository never opens, commits, or rolls
// back transactions itself and opens no connections here.
//
// The domain side of the binding is enforced at compile time through the
// Loadable constraint. The persistence side is asserted now: PM must be a
// Bun-mapped struct with exactly one primary key column. A violated
// assertion is fatal for the binding, not a data error, so no taxonomy
// error is used.
func NewCrud[PM any, DM any, PDM Loadable[DM]](session bun.IDB) (*Crud[PM, DM, PDM], error) {
	if session == nil {
		return nil, fmt.Errorf("repository: session is required")
	}
	typ := reflect.TypeOf((*PM)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("repository: persistence model %s must be a struct", typ)
	}
	table := session.Dialect().Tables().Get(typ)
	if table == nil || len(table.Fields) == 0 {
		return nil, fmt.Errorf("repository: %s declares no mapped columns", typ)
	}
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("repository: %s must declare exactly one primary key, found %d", typ, len(table.PKs))
	}
	return &Crud[PM, DM, PDM]{session: session, table: table}, nil
}

// MustCrud is NewCrud for package-level bindings; it panics when the
// persistence model violates its contract.
func MustCrud[PM any, DM any, PDM Loadable[DM]](session bun.IDB) *Crud[PM, DM, PDM] {
	c, err := NewCrud[PM, DM, PDM](session)
	if err != nil {
		panic(err)
	}
	return c
}
